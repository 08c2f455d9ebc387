package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainfile/internal/clvm"
	"github.com/roach88/chainfile/internal/ledger"
)

func TestHeightClock(t *testing.T) {
	clock := NewHeightClock()
	assert.Equal(t, uint32(0), clock.Current())
	assert.Equal(t, uint32(1), clock.Next())
	assert.Equal(t, uint32(2), clock.Next())
	assert.Equal(t, uint32(2), clock.Current())

	clock.Reset()
	assert.Equal(t, uint32(1), clock.Next())
}

func TestHeightClockConcurrent(t *testing.T) {
	clock := NewHeightClock()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Next()
		}()
	}
	wg.Wait()
	assert.Equal(t, uint32(50), clock.Current())
}

func TestSequenceRunIDs(t *testing.T) {
	g := NewSequenceRunIDs()
	assert.Equal(t, "run-0001", g.Generate())
	assert.Equal(t, "run-0002", g.Generate())
	assert.Equal(t, "run-fixed", FixedRunID("").Generate())
	assert.Equal(t, "abc", FixedRunID("abc").Generate())
}

func TestFakeChainPublish(t *testing.T) {
	ctx := context.Background()
	chain := NewFakeChain()
	ids := chain.PublishStrings("one", "two")
	require.Len(t, ids, 3)

	children, err := chain.ChildRecords(ctx, ids[0])
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, ids[1], children[0].ID())

	tip, err := chain.ChildRecords(ctx, ids[2])
	require.NoError(t, err)
	assert.Empty(t, tip)

	rec, err := chain.RecordByID(ctx, ids[1])
	require.NoError(t, err)
	assert.True(t, rec.IsSpent())

	raw, err := chain.SpendSolution(ctx, ids[1], rec.SpentHeight)
	require.NoError(t, err)
	prog, err := clvm.Deserialize(raw)
	require.NoError(t, err)
	items, err := prog.ToList()
	require.NoError(t, err)
	require.NotEmpty(t, items)
	assert.Equal(t, []byte("two"), items[0].AtomBytes())
}

func TestFakeChainUnknownAndUnspent(t *testing.T) {
	ctx := context.Background()
	chain := NewFakeChain()
	ids := chain.PublishStrings("one")

	_, err := chain.SpendSolution(ctx, ids[1], 0)
	assert.True(t, ledger.IsNotFound(err))

	_, err = chain.RecordByID(ctx, chain.puzzle)
	assert.True(t, ledger.IsNotFound(err))
}

func TestFakeChainFailOn(t *testing.T) {
	chain := NewFakeChain()
	ids := chain.PublishStrings("one")
	boom := errors.New("boom")
	chain.FailOn(ids[0], boom)

	_, err := chain.RecordByID(context.Background(), ids[0])
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, chain.Calls("RecordByID"))
}

func TestFakeChainAddChildForks(t *testing.T) {
	chain := NewFakeChain()
	ids := chain.PublishStrings("one")
	extra := chain.AddChild(ids[0])
	assert.NotEqual(t, ids[1], extra)

	children, err := chain.ChildRecords(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Len(t, children, 2)
}
