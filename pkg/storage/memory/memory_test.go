package memory

import (
	"context"
	"testing"

	"github.com/goliatone/go-persist/pkg/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(*testing.T) storagetest.Storage { return New() })
}

func TestStoreKeysAndDelete(t *testing.T) {
	ctx := context.Background()
	s := New()
	_ = s.Set(ctx, "b", []byte("2"))
	_ = s.Set(ctx, "a", []byte("1"))

	keys := s.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Fatalf("expected sorted keys, got %v", keys)
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Fatalf("expected key removed")
	}
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestZeroValueStoreIsUsable(t *testing.T) {
	var s Store
	if err := s.Set(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("set: %v", err)
	}
	if value, ok, _ := s.Get(context.Background(), "k"); !ok || string(value) != "v" {
		t.Fatalf("unexpected value %q ok=%v", value, ok)
	}
}
