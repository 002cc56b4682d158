// Package broker owns the daemon's ZeroMQ surface: the query and
// contents ROUTER sockets and the telemetry PUB socket, plus the pump
// tasks shuttling frames between sockets and worker channels.
//
// Framing:
//
//	query inbound     4 frames  [broker_env, client_env, origin, request]
//	query outbound    3 frames  [broker_env, client_env, payload]
//	contents inbound  4 frames  [broker_env, client_env, _, origin]
//	contents outbound 4 frames  [broker_env, client_env, "", payload]
//	telemetry         5 frames  [key, value, unit, identifier, hostname]
//
// All pump tasks are linked: the first failure cancels the rest and
// becomes the daemon's exit cause.
package broker

import (
	"context"
	"fmt"

	"github.com/go-zeromq/zmq4"
	"golang.org/x/sync/errgroup"

	"github.com/anchor/vaultaire/config"
	"github.com/anchor/vaultaire/internal/logging"
	"github.com/anchor/vaultaire/internal/telemetry"
)

var log = logging.Component("broker")

// Message is one validated inbound query: the two opaque routing
// envelopes, the origin, and the request body.
type Message struct {
	Broker []byte
	Client []byte
	Origin []byte
	Body   []byte
}

// Reply is one outbound payload addressed by its routing envelopes. A
// zero-length payload is the end-of-burst marker.
type Reply struct {
	Broker  []byte
	Client  []byte
	Payload []byte
}

// Broker connects the daemon to one upstream broker host.
type Broker struct {
	query    zmq4.Socket
	contents zmq4.Socket
	pub      zmq4.Socket

	inbound    chan Message
	contentsIn chan Message

	outbound    *queue[Reply]
	contentsOut *queue[Reply]
	events      *queue[telemetry.Event]

	identity telemetry.Identity
	debug    bool
}

// Dial opens the three sockets against host. The sockets are bound to
// ctx: cancelling it unblocks every pending receive.
func Dial(ctx context.Context, host string, debug bool) (*Broker, error) {
	b := &Broker{
		query:       zmq4.NewRouter(ctx),
		contents:    zmq4.NewRouter(ctx),
		pub:         zmq4.NewPub(ctx),
		inbound:     make(chan Message, config.InboundQueueSize),
		contentsIn:  make(chan Message, config.ContentsQueueSize),
		outbound:    newQueue[Reply](ctx),
		contentsOut: newQueue[Reply](ctx),
		events:      newQueue[telemetry.Event](ctx),
		identity:    telemetry.LocalIdentity(),
		debug:       debug,
	}

	endpoints := []struct {
		sck  zmq4.Socket
		port int
	}{
		{b.query, config.QueryPort},
		{b.contents, config.ContentsPort},
		{b.pub, config.TelemetryPort},
	}
	for _, ep := range endpoints {
		addr := fmt.Sprintf("tcp://%s:%d", host, ep.port)
		if err := ep.sck.Dial(addr); err != nil {
			b.Close()
			return nil, fmt.Errorf("dial %s: %w", addr, err)
		}
	}

	log.Info("broker connected", "host", host)
	return b, nil
}

// Close releases the sockets.
func (b *Broker) Close() error {
	b.query.Close()
	b.contents.Close()
	b.pub.Close()
	return nil
}

// Inbound is the single-slot query hand-off consumed by reader workers.
func (b *Broker) Inbound() <-chan Message { return b.inbound }

// ContentsIn is the single-slot contents hand-off.
func (b *Broker) ContentsIn() <-chan Message { return b.contentsIn }

// SendReply enqueues a query reply. Never blocks on the socket.
func (b *Broker) SendReply(ctx context.Context, r Reply) {
	b.outbound.Push(ctx, r)
}

// SendContentsReply enqueues a contents reply.
func (b *Broker) SendContentsReply(ctx context.Context, r Reply) {
	b.contentsOut.Push(ctx, r)
}

// Telemetry enqueues a telemetry event.
func (b *Broker) Telemetry(ctx context.Context, e telemetry.Event) {
	b.events.Push(ctx, e)
}

// Run drives the pump tasks until ctx is cancelled or one fails.
func (b *Broker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	// Socket receives do not watch the group's context, only the one
	// passed to Dial, so tie the sockets' lifetime to the group: any
	// sibling failure or external
	// cancellation closes them and the pumps fall out of Recv.
	g.Go(func() error {
		<-ctx.Done()
		return b.Close()
	})
	g.Go(func() error { return b.telemetryPump(ctx) })
	g.Go(func() error { return b.inboundPump(ctx) })
	g.Go(func() error { return b.outboundPump(ctx) })
	g.Go(func() error { return b.contentsInboundPump(ctx) })
	g.Go(func() error { return b.contentsOutboundPump(ctx) })
	return g.Wait()
}

// =============================================================================
// Pumps
// =============================================================================

func (b *Broker) inboundPump(ctx context.Context) error {
	for {
		msg, err := b.query.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("query receive: %w", err)
		}

		m, ok := splitMessage(msg.Frames)
		if !ok {
			log.Warn("malformed query message dropped", "frames", len(msg.Frames))
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case b.inbound <- m:
		}
	}
}

func (b *Broker) outboundPump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-b.outbound.Out():
			msg := zmq4.NewMsgFrom(r.Broker, r.Client, r.Payload)
			if err := b.query.Send(msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("query send: %w", err)
			}
		}
	}
}

func (b *Broker) contentsInboundPump(ctx context.Context) error {
	for {
		msg, err := b.contents.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("contents receive: %w", err)
		}

		// Frame 3 is ignored on contents queries; frame 4 carries the
		// origin.
		if len(msg.Frames) != 4 {
			log.Warn("malformed contents message dropped", "frames", len(msg.Frames))
			continue
		}
		m := Message{
			Broker: msg.Frames[0],
			Client: msg.Frames[1],
			Origin: msg.Frames[3],
		}

		select {
		case <-ctx.Done():
			return nil
		case b.contentsIn <- m:
		}
	}
}

func (b *Broker) contentsOutboundPump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-b.contentsOut.Out():
			msg := zmq4.NewMsgFrom(r.Broker, r.Client, []byte{}, r.Payload)
			if err := b.contents.Send(msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("contents send: %w", err)
			}
		}
	}
}

func (b *Broker) telemetryPump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-b.events.Out():
			if b.debug {
				fmt.Println(e.String())
			}
			msg := zmq4.NewMsgFrom(e.Frames(b.identity)...)
			if err := b.pub.Send(msg); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("telemetry send: %w", err)
			}
		}
	}
}

func splitMessage(frames [][]byte) (Message, bool) {
	if len(frames) != 4 {
		return Message{}, false
	}
	return Message{
		Broker: frames[0],
		Client: frames[1],
		Origin: frames[2],
		Body:   frames[3],
	}, true
}
