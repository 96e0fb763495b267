// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// Storage is the capability under test.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Factory returns a fresh, empty backend for one subtest.
type Factory func(t *testing.T) Storage

// Run exercises the shared Get/Set contract against backends built by factory.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("missing key", func(t *testing.T) {
		s := factory(t)
		value, ok, err := s.Get(context.Background(), "absent")
		require.NoError(t, err)
		require.False(t, ok)
		require.Nil(t, value)
	})

	t.Run("set then get", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "cart", []byte(`{"a":1,"miniVersion":"1.0"}`)))

		value, ok, err := s.Get(ctx, "cart")
		require.NoError(t, err)
		require.True(t, ok)
		require.JSONEq(t, `{"a":1,"miniVersion":"1.0"}`, string(value))
	})

	t.Run("overwrite", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "cart", []byte(`{"a":1}`)))
		require.NoError(t, s.Set(ctx, "cart", []byte(`{"b":2}`)))

		value, ok, err := s.Get(ctx, "cart")
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, `{"b":2}`, string(value))
	})

	t.Run("keys are isolated", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "cart", []byte(`"cart"`)))
		require.NoError(t, s.Set(ctx, "cart/items", []byte(`"items"`)))
		require.NoError(t, s.Set(ctx, "cart items", []byte(`"spaced"`)))

		for key, want := range map[string]string{"cart": `"cart"`, "cart/items": `"items"`, "cart items": `"spaced"`} {
			value, ok, err := s.Get(ctx, key)
			require.NoError(t, err)
			require.True(t, ok, key)
			require.Equal(t, want, string(value), key)
		}
	})

	t.Run("stored value is detached from caller", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		input := []byte(`{"a":1}`)
		require.NoError(t, s.Set(ctx, "k", input))
		input[2] = 'z'

		value, _, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, `{"a":1}`, string(value))
		value[2] = 'y'

		again, _, err := s.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, `{"a":1}`, string(again))
	})

	t.Run("concurrent writers", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.Set(ctx, fmt.Sprintf("key-%d", i), []byte(fmt.Sprintf(`{"n":%d}`, i)))
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		for i := range 8 {
			value, ok, err := s.Get(ctx, fmt.Sprintf("key-%d", i))
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, fmt.Sprintf(`{"n":%d}`, i), string(value))
		}
	})
}
