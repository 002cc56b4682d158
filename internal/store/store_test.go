package store

import (
	"context"
	"testing"

	verrors "github.com/anchor/vaultaire/internal/errors"
)

func TestMemoryReadWriteStat(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, err := m.ReadFull(ctx, "absent"); !verrors.IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := m.Stat(ctx, "absent"); !verrors.IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := m.WriteFull(ctx, "oid", []byte("abc")); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := m.ReadFull(ctx, "oid")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "abc" {
		t.Errorf("read back %q", data)
	}

	st, err := m.Stat(ctx, "oid")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Size != 3 {
		t.Errorf("size %d", st.Size)
	}
	if m.Reads("oid") != 1 {
		t.Errorf("read count %d", m.Reads("oid"))
	}
}

func TestMemoryList(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, oid := range []string{"02_a_1", "02_a_2", "02_b_1"} {
		if err := m.WriteFull(ctx, oid, []byte{1}); err != nil {
			t.Fatal(err)
		}
	}

	oids, err := m.List(ctx, "02_a_")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(oids) != 2 || oids[0] != "02_a_1" || oids[1] != "02_a_2" {
		t.Errorf("list: %v", oids)
	}
}

func TestMemoryLocks(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	ran := false
	err := m.WithExclusiveLock(ctx, "oid", func() error {
		// Shared lock on a different object must not deadlock.
		return m.WithSharedLock(ctx, "other", func() error {
			ran = true
			return nil
		})
	})
	if err != nil || !ran {
		t.Fatalf("nested locks on distinct objects: %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if err := m.WithSharedLock(cancelled, "oid", func() error { return nil }); err == nil {
		t.Error("lock under cancelled context should refuse")
	}
}

func TestLockCookieUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		c := lockCookie()
		if seen[c] {
			t.Fatalf("duplicate cookie %q", c)
		}
		seen[c] = true
	}
}
