package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/ceph/go-ceph/rados"

	"github.com/anchor/vaultaire/config"
	verrors "github.com/anchor/vaultaire/internal/errors"
	"github.com/anchor/vaultaire/internal/logging"
)

var log = logging.Component("store")

// connectMu serializes librados connection setup. Two connects racing
// in one process corrupt the client's global state (upstream librados
// bug), so a worker holds this until its pool is fully open. Per-object
// operations after that point are safe to run concurrently.
var connectMu sync.Mutex

const lockName = "vaultaire"

// Pool is a Store backed by one RADOS io context. Each worker opens
// its own Pool; the underlying connection is not shared.
type Pool struct {
	conn  *rados.Conn
	ioctx *rados.IOContext
}

// Connect opens a connection as user, reads the cluster configuration
// from config.CephConfigPath, and opens the named pool. The global
// connect mutex is held until the pool is up.
func Connect(user, pool string) (*Pool, error) {
	connectMu.Lock()
	defer connectMu.Unlock()

	conn, err := rados.NewConnWithUser(user)
	if err != nil {
		return nil, verrors.Wrap(err, "create connection")
	}
	if err := conn.ReadConfigFile(config.CephConfigPath); err != nil {
		return nil, verrors.Wrap(err, "read ceph config")
	}
	if err := conn.Connect(); err != nil {
		return nil, verrors.Wrap(err, "connect")
	}

	ioctx, err := conn.OpenIOContext(pool)
	if err != nil {
		conn.Shutdown()
		return nil, verrors.Wrapf(err, "open pool %q", pool)
	}

	log.Debug("pool open", "user", user, "pool", pool)
	return &Pool{conn: conn, ioctx: ioctx}, nil
}

// Close releases the io context and shuts the connection down.
func (p *Pool) Close() error {
	p.ioctx.Destroy()
	p.conn.Shutdown()
	return nil
}

// ReadFull returns the entire object body.
func (p *Pool) ReadFull(ctx context.Context, oid string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, err := p.Stat(ctx, oid)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, st.Size)
	var off uint64
	for off < st.Size {
		n, err := p.ioctx.Read(oid, buf[off:], off)
		if err != nil {
			return nil, verrors.Wrapf(mapNotFound(err), "read %q", oid)
		}
		if n == 0 {
			break
		}
		off += uint64(n)
	}
	return buf[:off], nil
}

// WriteFull replaces the entire object body.
func (p *Pool) WriteFull(ctx context.Context, oid string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.ioctx.WriteFull(oid, data); err != nil {
		return verrors.Wrapf(err, "write %q", oid)
	}
	return nil
}

// Stat returns object metadata.
func (p *Pool) Stat(ctx context.Context, oid string) (ObjectStat, error) {
	if err := ctx.Err(); err != nil {
		return ObjectStat{}, err
	}
	st, err := p.ioctx.Stat(oid)
	if err != nil {
		return ObjectStat{}, verrors.Wrapf(mapNotFound(err), "stat %q", oid)
	}
	return ObjectStat{Size: st.Size, ModTime: st.ModTime}, nil
}

// List returns all object identifiers in the pool with the prefix.
func (p *Pool) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	iter, err := p.ioctx.Iter()
	if err != nil {
		return nil, verrors.Wrap(err, "iterate pool")
	}
	defer iter.Close()

	var oids []string
	for iter.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.HasPrefix(iter.Value(), prefix) {
			oids = append(oids, iter.Value())
		}
	}
	if err := iter.Err(); err != nil {
		return nil, verrors.Wrap(err, "iterate pool")
	}
	return oids, nil
}

// WithSharedLock runs fn under a shared lock on oid.
func (p *Pool) WithSharedLock(ctx context.Context, oid string, fn func() error) error {
	return p.withLock(ctx, oid, fn, func(cookie string) (int, error) {
		return p.ioctx.LockShared(oid, lockName, cookie, "", "reader",
			config.LockTimeout+config.LockLeaseSlack, nil)
	})
}

// WithExclusiveLock runs fn under an exclusive lock on oid.
func (p *Pool) WithExclusiveLock(ctx context.Context, oid string, fn func() error) error {
	return p.withLock(ctx, oid, fn, func(cookie string) (int, error) {
		return p.ioctx.LockExclusive(oid, lockName, cookie, "reader",
			config.LockTimeout+config.LockLeaseSlack, nil)
	})
}

// withLock acquires the lock with a short retry tick so shutdown is
// noticed promptly, arms the watchdog, runs fn, and releases.
func (p *Pool) withLock(ctx context.Context, oid string, fn func() error, acquire func(cookie string) (int, error)) error {
	cookie := lockCookie()

	for {
		if err := ctx.Err(); err != nil {
			return verrors.ErrShutdown
		}
		ret, err := acquire(cookie)
		if err != nil {
			return verrors.Wrapf(err, "lock %q", oid)
		}
		if ret == 0 {
			break
		}
		// Held elsewhere; wait a tick and retry.
		select {
		case <-ctx.Done():
			return verrors.ErrShutdown
		case <-time.After(config.StoreTickInterval):
		}
	}

	stop := armWatchdog(oid)
	defer stop()
	defer func() {
		if _, err := p.ioctx.Unlock(oid, lockName, cookie); err != nil {
			log.Error("unlock failed", "oid", oid, "error", err)
		}
	}()

	return fn()
}

func mapNotFound(err error) error {
	if errors.Is(err, rados.ErrNotFound) {
		return verrors.ErrNotFound
	}
	return err
}
