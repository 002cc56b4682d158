// Package reader implements the query-serving workers: N point-query
// workers multiplexed over the inbound channel, and a single contents
// worker serializing access to the source directory.
package reader

import (
	"context"
	"log/slog"
	"time"

	"github.com/anchor/vaultaire/config"
	"github.com/anchor/vaultaire/internal/broker"
	"github.com/anchor/vaultaire/internal/bucket"
	"github.com/anchor/vaultaire/internal/daymap"
	"github.com/anchor/vaultaire/internal/disk"
	verrors "github.com/anchor/vaultaire/internal/errors"
	"github.com/anchor/vaultaire/internal/logging"
	"github.com/anchor/vaultaire/internal/store"
	"github.com/anchor/vaultaire/internal/telemetry"
	"github.com/anchor/vaultaire/internal/types"
	"github.com/anchor/vaultaire/internal/wire"
)

// QueryTransport is the slice of the broker a point-query worker needs.
type QueryTransport interface {
	SendReply(ctx context.Context, r broker.Reply)
	Telemetry(ctx context.Context, e telemetry.Event)
}

// Worker serves point queries. Each worker owns its own day-map cache;
// re-reading day files per worker costs a few stats and buys freedom
// from cross-worker locking.
type Worker struct {
	id    int
	store store.Store
	days  *daymap.Cache
	in    <-chan broker.Message
	out   QueryTransport
	demo  bool
	log   *slog.Logger
}

// NewWorker wires a worker to its store and channels.
func NewWorker(id int, s store.Store, in <-chan broker.Message, out QueryTransport, demo bool) *Worker {
	return &Worker{
		id:    id,
		store: s,
		days:  daymap.NewCache(s),
		in:    in,
		out:   out,
		demo:  demo,
		log:   logging.Component("reader").With("worker", id),
	}
}

// Run consumes the inbound channel until ctx is cancelled. Only fatal
// conditions (cache inconsistency) return an error; everything else is
// handled per message.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-w.in:
			if err := w.handle(ctx, msg); err != nil {
				return err
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg broker.Message) error {
	origin := types.Origin(msg.Origin)

	reqs, err := wire.DecodeRequestMulti(origin, msg.Body)
	if err != nil {
		w.log.Warn("request parse failed", "origin", string(origin), "error", err)
		w.out.Telemetry(ctx, telemetry.Error(err.Error()))
		w.endOfBurst(ctx, msg)
		return nil
	}

	for _, req := range reqs {
		if err := w.process(ctx, msg, req); err != nil {
			return err
		}
	}
	return nil
}

// process serves one request: traverse its epochs in ascending order,
// reply one compressed burst per bucket, then the end-of-burst marker,
// then the duration telemetry line. N requests in one message emit N
// duration lines.
func (w *Worker) process(ctx context.Context, msg broker.Message, req types.Request) error {
	start := time.Now()

	if w.demo && req.Origin == config.DemoOrigin {
		w.processDemo(ctx, msg, req)
	} else if err := w.processStored(ctx, msg, req); err != nil {
		if verrors.IsFatal(err) {
			return err
		}
		// Shutdown in flight; the marker and telemetry sends below are
		// context-guarded no-ops.
	}

	w.endOfBurst(ctx, msg)
	w.out.Telemetry(ctx, telemetry.Duration(time.Since(start).Seconds()))
	return nil
}

func (w *Worker) processStored(ctx context.Context, msg broker.Message, req types.Request) error {
	if err := w.days.Refresh(ctx, req.Origin); err != nil {
		// A cache that cannot be revalidated is fatal; partial-state
		// serving of wrong data is worse than dying.
		return err
	}

	for _, mark := range bucket.CalculateTimeMarks(req.Alpha, req.Omega) {
		w.sendBucket(ctx, msg, req, mark, bucket.Simple)
		w.sendBucket(ctx, msg, req, mark, bucket.Extended)
	}
	return nil
}

// sendBucket reads one bucket object and replies with its in-range
// points as a compressed burst. Missing day-map coverage skips
// silently; a transient read failure skips the bucket and continues
// the traversal.
func (w *Worker) sendBucket(ctx context.Context, msg broker.Message, req types.Request, mark uint64, kind bucket.Kind) {
	var m daymap.Map
	var ok bool
	if kind == bucket.Simple {
		m, ok = w.days.Simple(req.Origin)
	} else {
		m, ok = w.days.Extended(req.Origin)
	}
	if !ok {
		return
	}
	epoch, ok := m.Lookup(mark)
	if !ok {
		return
	}

	oid := bucket.Oid(req.Origin, epoch.Start, req.Address%epoch.Buckets, kind)
	data, err := w.store.ReadFull(ctx, oid)
	if err != nil {
		if !verrors.IsNotFound(err) {
			w.log.Warn("bucket read failed, skipping", "oid", oid, "error", err)
		}
		return
	}

	recs, err := disk.DecodeRecords(data)
	if err != nil {
		w.log.Warn("bucket decode failed, skipping", "oid", oid, "error", err)
		return
	}

	points := pointsInRange(req, recs)
	if len(points) == 0 {
		return
	}

	w.reply(ctx, msg, wire.EncodePoints(points))
}

// pointsInRange keeps exactly the records with
// alpha <= timestamp <= omega, in bucket order.
func pointsInRange(req types.Request, recs []disk.Record) []types.Point {
	var points []types.Point
	for i := range recs {
		r := &recs[i]
		if r.Timestamp < req.Alpha || r.Timestamp > req.Omega {
			continue
		}
		points = append(points, types.Point{
			Origin:    req.Origin,
			Source:    types.SourceDict{},
			Timestamp: r.Timestamp,
			Payload:   r.Payload,
		})
	}
	return points
}

// reply compresses a burst and enqueues it. A failed compression
// degrades to an empty payload for the bucket.
func (w *Worker) reply(ctx context.Context, msg broker.Message, burst []byte) {
	payload, err := disk.Compress(burst)
	if err != nil {
		w.log.Warn("burst compression failed", "error", err)
		payload = nil
	}
	w.out.SendReply(ctx, broker.Reply{Broker: msg.Broker, Client: msg.Client, Payload: payload})
}

// endOfBurst sends the zero-length payload that terminates a request.
func (w *Worker) endOfBurst(ctx context.Context, msg broker.Message) {
	w.out.SendReply(ctx, broker.Reply{Broker: msg.Broker, Client: msg.Client})
}
