package reader

import (
	"context"
	"log/slog"

	"github.com/anchor/vaultaire/config"
	"github.com/anchor/vaultaire/internal/broker"
	"github.com/anchor/vaultaire/internal/bucket"
	verrors "github.com/anchor/vaultaire/internal/errors"
	"github.com/anchor/vaultaire/internal/logging"
	"github.com/anchor/vaultaire/internal/store"
	"github.com/anchor/vaultaire/internal/telemetry"
	"github.com/anchor/vaultaire/internal/types"
	"github.com/anchor/vaultaire/internal/wire"
)

// ContentsTransport is the slice of the broker the contents worker
// needs.
type ContentsTransport interface {
	SendContentsReply(ctx context.Context, r broker.Reply)
	Telemetry(ctx context.Context, e telemetry.Event)
}

// Contents is the single long-running contents-query worker. Contents
// reads are infrequent and must serialize against the shared directory
// map, so one worker is enough.
type Contents struct {
	store store.Store
	dir   *Directory
	in    <-chan broker.Message
	out   ContentsTransport
	demo  bool
	log   *slog.Logger
}

// NewContents wires the contents worker.
func NewContents(s store.Store, dir *Directory, in <-chan broker.Message, out ContentsTransport, demo bool) *Contents {
	return &Contents{
		store: s,
		dir:   dir,
		in:    in,
		out:   out,
		demo:  demo,
		log:   logging.Component("contents"),
	}
}

// Run consumes contents queries until ctx is cancelled.
func (c *Contents) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.in:
			c.handle(ctx, msg)
		}
	}
}

func (c *Contents) handle(ctx context.Context, msg broker.Message) {
	origin := types.Origin(msg.Origin)

	var entries []wire.SourceEntry
	if c.demo && origin == config.DemoOrigin {
		src := demoSource()
		entries = c.dir.Update(origin, []wire.SourceEntry{
			{Address: bucket.Address(src), Source: src},
		})
	} else {
		loaded, err := c.read(ctx, origin)
		if err != nil {
			c.log.Warn("contents read failed", "origin", string(origin), "error", err)
			c.out.Telemetry(ctx, telemetry.Error(err.Error()))
		}
		entries = c.dir.Update(origin, loaded)
	}

	payload := wire.EncodeSourceBurst(entries)
	c.out.SendContentsReply(ctx, broker.Reply{Broker: msg.Broker, Client: msg.Client, Payload: payload})
}

// read fetches and decodes the origin's contents object. A missing
// object is an empty listing, not an error.
func (c *Contents) read(ctx context.Context, origin types.Origin) ([]wire.SourceEntry, error) {
	data, err := c.store.ReadFull(ctx, bucket.ContentsOid(origin))
	if err != nil {
		if verrors.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return wire.DecodeSourceBurst(data)
}
