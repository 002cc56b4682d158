// Package daemon assembles and supervises the reader daemon: the broker
// pumps, the reader worker pool, and the contents worker run as one
// linked task group. The first failure cancels every sibling and
// becomes the process exit cause.
package daemon

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/anchor/vaultaire/internal/broker"
	"github.com/anchor/vaultaire/internal/logging"
	"github.com/anchor/vaultaire/internal/reader"
	"github.com/anchor/vaultaire/internal/store"
)

var log = logging.Component("daemon")

// Config carries everything Run needs.
type Config struct {
	Broker  string
	Pool    string
	User    string
	Workers int
	Debug   bool
	Demo    bool

	// NewStore opens one store connection. Each worker calls it once,
	// so every worker owns its own pool handle. Defaults to connecting
	// to RADOS with the configured user and pool.
	NewStore func() (store.Store, error)
}

func (c *Config) newStore() (store.Store, error) {
	if c.NewStore != nil {
		return c.NewStore()
	}
	return store.Connect(c.User, c.Pool)
}

// Run blocks until ctx is cancelled (clean shutdown, returns nil) or a
// linked task fails (returns the first failure).
func Run(ctx context.Context, cfg *Config) error {
	b, err := broker.Dial(ctx, cfg.Broker, cfg.Debug)
	if err != nil {
		return err
	}
	defer b.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return b.Run(gctx) })

	for i := 0; i < cfg.Workers; i++ {
		id := i
		g.Go(func() error {
			s, err := cfg.newStore()
			if err != nil {
				return err
			}
			defer s.Close()
			return reader.NewWorker(id, s, b.Inbound(), b, cfg.Demo).Run(gctx)
		})
	}

	g.Go(func() error {
		s, err := cfg.newStore()
		if err != nil {
			return err
		}
		defer s.Close()
		dir := reader.NewDirectory()
		return reader.NewContents(s, dir, b.ContentsIn(), b, cfg.Demo).Run(gctx)
	})

	log.Info("daemon running", "workers", cfg.Workers, "broker", cfg.Broker, "demo", cfg.Demo)

	err = g.Wait()
	if err != nil {
		log.Error("linked task failed", "error", err)
		return err
	}
	log.Info("daemon stopped")
	return nil
}
