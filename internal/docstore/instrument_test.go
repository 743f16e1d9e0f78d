package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	ops    []string
	failed int
}

func (o *recordingObserver) ObserveStoreOperation(op, collection string, _ time.Duration, err error) {
	o.ops = append(o.ops, op+":"+collection)
	if err != nil {
		o.failed++
	}
}

func TestInstrumentReportsEveryCall(t *testing.T) {
	ctx := context.Background()
	obs := &recordingObserver{}
	store := Instrument(NewMemoryStore(), obs)

	require.NoError(t, store.Write(ctx, "things", "a", sampleDoc{ID: "a"}))
	_, _ = store.Read(ctx, "things", "missing")
	_, err := store.Query(ctx, "things", Eq("kind", "x"))
	require.NoError(t, err)
	require.NoError(t, store.UpdateField(ctx, "things", "a", "members", ArrayUnion, "m"))

	assert.Equal(t, []string{"write:things", "read:things", "query:things", "array_union:things"}, obs.ops)
	assert.Equal(t, 1, obs.failed)
}

func TestInstrumentWithoutObserverReturnsStore(t *testing.T) {
	store := NewMemoryStore()
	assert.Same(t, store, Instrument(store, nil))
}
