package intstore

import (
	"bytes"
	"context"
	"testing"

	verrors "github.com/anchor/vaultaire/internal/errors"
	"github.com/anchor/vaultaire/internal/store"
)

func TestWriteReadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New(store.NewMemory())

	if err := s.Write(ctx, "tenant", 42, []byte("hello vault")); err != nil {
		t.Fatalf("write: %v", err)
	}

	data, err := s.Read(ctx, "tenant", 42)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, []byte("hello vault")) {
		t.Errorf("read back %q", data)
	}

	// Overwrite replaces.
	if err := s.Write(ctx, "tenant", 42, []byte("second")); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	data, err = s.Read(ctx, "tenant", 42)
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if string(data) != "second" {
		t.Errorf("overwrite not visible: %q", data)
	}
}

func TestReadMissing(t *testing.T) {
	s := New(store.NewMemory())
	if _, err := s.Read(context.Background(), "tenant", 1); !verrors.IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEnumerateOrigin(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := New(mem)

	for _, addr := range []uint64{300, 1, 20} {
		if err := s.Write(ctx, "tenant", addr, []byte{1}); err != nil {
			t.Fatal(err)
		}
	}
	// Same addresses under another origin, and a point bucket sharing
	// the origin prefix: neither may leak into the enumeration.
	if err := s.Write(ctx, "other", 99, []byte{1}); err != nil {
		t.Fatal(err)
	}
	if err := mem.WriteFull(ctx, "02_tenant_00000000000000000005_00000000000000000000_simple", []byte{1}); err != nil {
		t.Fatal(err)
	}

	addrs, err := s.EnumerateOrigin(ctx, "tenant")
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	want := []uint64{1, 20, 300}
	if len(addrs) != len(want) {
		t.Fatalf("expected %v, got %v", want, addrs)
	}
	for i := range want {
		if addrs[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, addrs)
		}
	}
}
