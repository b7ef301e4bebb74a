package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/kvstore"
)

func TestInstrumentedStore(t *testing.T) {
	reader, recorder := useTestProviders(t)

	mem := kvstore.NewMemory(time.Minute)
	defer mem.Close()
	store, err := NewInstrumentedStore(mem)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Get(ctx, "rl:1.2.3.4")
	assert.ErrorIs(t, err, kvstore.ErrNotFound)

	require.NoError(t, store.Put(ctx, "rl:1.2.3.4", `{"count":1}`, time.Minute))
	v, err := store.Get(ctx, "rl:1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, `{"count":1}`, v)
	require.NoError(t, store.Delete(ctx, "rl:1.2.3.4"))

	assert.Equal(t, uint64(4), histogramCount(t, reader, "kvstore.operation.duration"))
	assert.Zero(t, counterTotal(t, reader, "kvstore.operation.errors"), "misses are not errors")

	for _, s := range recorder.Ended() {
		for _, attr := range s.Attributes() {
			assert.NotContains(t, attr.Value.Emit(), "1.2.3.4", "keys must not be recorded")
		}
	}
}

func TestInstrumentedStore_CountsUnavailable(t *testing.T) {
	reader, _ := useTestProviders(t)

	mem := kvstore.NewMemory(time.Minute)
	defer mem.Close()
	mem.SetUnavailable(true)

	store, err := NewInstrumentedStore(mem)
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, kvstore.ErrUnavailable)
	assert.Error(t, store.Put(context.Background(), "k", "v", time.Second))
	assert.Equal(t, int64(2), counterTotal(t, reader, "kvstore.operation.errors"))
}
