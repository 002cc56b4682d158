// Package intstore is the vault's self-hosted key-value layer: opaque
// values stored in bucket-schema objects, addressed by (origin,
// address). The reader daemon itself does not use it; it exists so vault
// components can persist small state without a second storage system.
package intstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	verrors "github.com/anchor/vaultaire/internal/errors"
	"github.com/anchor/vaultaire/internal/store"
	"github.com/anchor/vaultaire/internal/types"
)

// suffix marks internal-store objects apart from point buckets.
const suffix = "_int"

// Store is the key-value layer over an object store.
type Store struct {
	objects store.Store
}

// New wraps an object store.
func New(s store.Store) *Store {
	return &Store{objects: s}
}

func oid(origin types.Origin, address uint64) string {
	return fmt.Sprintf("02_%s_%020d%s", origin, address, suffix)
}

func originPrefix(origin types.Origin) string {
	return "02_" + string(origin) + "_"
}

// Write stores data under (origin, address), replacing any previous
// value. The target object is written under its exclusive lock so
// concurrent writers serialize.
func (s *Store) Write(ctx context.Context, origin types.Origin, address uint64, data []byte) error {
	target := oid(origin, address)
	return s.objects.WithExclusiveLock(ctx, target, func() error {
		return s.objects.WriteFull(ctx, target, data)
	})
}

// Read returns the value under (origin, address), under the object's
// shared lock. Missing values report errors.ErrNotFound.
func (s *Store) Read(ctx context.Context, origin types.Origin, address uint64) ([]byte, error) {
	target := oid(origin, address)
	var data []byte
	err := s.objects.WithSharedLock(ctx, target, func() error {
		var err error
		data, err = s.objects.ReadFull(ctx, target)
		return err
	})
	return data, err
}

// EnumerateOrigin lists every address with a stored value for origin,
// ascending.
func (s *Store) EnumerateOrigin(ctx context.Context, origin types.Origin) ([]uint64, error) {
	prefix := originPrefix(origin)
	oids, err := s.objects.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var addresses []uint64
	for _, id := range oids {
		if !strings.HasSuffix(id, suffix) {
			continue
		}
		field := strings.TrimSuffix(id[len(prefix):], suffix)
		if len(field) != 20 {
			continue
		}
		addr, err := strconv.ParseUint(field, 10, 64)
		if err != nil {
			return nil, verrors.Wrapf(err, "malformed internal oid %q", id)
		}
		addresses = append(addresses, addr)
	}
	sort.Slice(addresses, func(i, j int) bool { return addresses[i] < addresses[j] })
	return addresses, nil
}
