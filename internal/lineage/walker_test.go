package lineage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainfile/internal/clvm"
	"github.com/roach88/chainfile/internal/ledger"
	"github.com/roach88/chainfile/internal/metrics"
	"github.com/roach88/chainfile/internal/model"
	"github.com/roach88/chainfile/internal/testutil"
)

func newWalker(chain *testutil.FakeChain, opts ...WalkerOption) *Walker {
	return NewWalker(chain, NewExtractor(chain), opts...)
}

func collect(hops *[]model.Hop) Sink {
	return func(h model.Hop) error {
		*hops = append(*hops, h)
		return nil
	}
}

func TestWalkEmitsHopsInChainOrder(t *testing.T) {
	chain := testutil.NewFakeChain()
	ids := chain.PublishStrings("first", "second", "third")

	m := metrics.New()
	var hops []model.Hop
	step, err := newWalker(chain, WithMetrics(m)).Walk(context.Background(), ids[0], collect(&hops))
	require.NoError(t, err)

	assert.Equal(t, model.LineageStep{Parent: ids[2], Current: ids[3]}, step)
	require.Len(t, hops, 3)
	assert.Equal(t, ids[0], hops[0].ID)
	assert.Equal(t, "first", string(hops[0].Message))
	assert.Equal(t, "second", string(hops[1].Message))
	assert.Equal(t, ids[2], hops[2].ID)
	assert.Equal(t, "third", string(hops[2].Message))
}

func TestWalkFromTipReturnsStartTwice(t *testing.T) {
	chain := testutil.NewFakeChain()
	tip := chain.Mint()

	var hops []model.Hop
	step, err := newWalker(chain).Walk(context.Background(), tip, collect(&hops))
	require.NoError(t, err)
	assert.Equal(t, model.LineageStep{Parent: tip, Current: tip}, step)
	assert.Empty(t, hops)
}

func TestWalkFromMidChain(t *testing.T) {
	chain := testutil.NewFakeChain()
	ids := chain.PublishStrings("a", "b", "c")

	var hops []model.Hop
	step, err := newWalker(chain).Walk(context.Background(), ids[1], collect(&hops))
	require.NoError(t, err)
	assert.Equal(t, ids[3], step.Current)
	require.Len(t, hops, 2)
	assert.Equal(t, "b", string(hops[0].Message))
}

func TestWalkFailsOnMultipleChildren(t *testing.T) {
	chain := testutil.NewFakeChain()
	ids := chain.PublishStrings("a", "b")
	chain.AddChild(ids[1])

	step, err := newWalker(chain).Walk(context.Background(), ids[0], nil)
	require.Error(t, err)
	assert.True(t, IsAmbiguous(err))
	assert.Equal(t, model.LineageStep{}, step)
}

func TestWalkLedgerFailureAborts(t *testing.T) {
	chain := testutil.NewFakeChain()
	ids := chain.PublishStrings("a", "b", "c")
	boom := &ledger.QueryError{Code: ledger.ErrCodeTransport, Endpoint: ledger.EndpointChildRecords, Err: errors.New("refused")}
	chain.FailOn(ids[2], boom)

	var hops []model.Hop
	step, err := newWalker(chain).Walk(context.Background(), ids[0], collect(&hops))
	require.Error(t, err)
	assert.True(t, ledger.IsTransient(err))
	assert.Equal(t, model.LineageStep{}, step)
	assert.Len(t, hops, 1)
}

func TestWalkSinkErrorAborts(t *testing.T) {
	chain := testutil.NewFakeChain()
	ids := chain.PublishStrings("a", "b")
	stop := errors.New("stop")

	_, err := newWalker(chain).Walk(context.Background(), ids[0], func(model.Hop) error { return stop })
	require.ErrorIs(t, err, stop)
}

func TestWalkHonoursCancellation(t *testing.T) {
	chain := testutil.NewFakeChain()
	ids := chain.PublishStrings("a", "b")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newWalker(chain).Walk(ctx, ids[0], nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, chain.Calls("ChildRecords"))
}

func TestReadMessageReturnsLatest(t *testing.T) {
	chain := testutil.NewFakeChain()
	ids := chain.PublishStrings("v1", "v2")

	msg, step, err := newWalker(chain).ReadMessage(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, "v2", string(msg))
	assert.Equal(t, ids[2], step.Current)
}

func TestReadMessageOnUnspentStart(t *testing.T) {
	chain := testutil.NewFakeChain()
	tip := chain.Mint()

	_, _, err := newWalker(chain).ReadMessage(context.Background(), tip)
	require.Error(t, err)
	assert.True(t, IsNotSpent(err))
}

func TestExtractorErrors(t *testing.T) {
	ctx := context.Background()
	chain := testutil.NewFakeChain()
	ex := NewExtractor(chain)

	t.Run("not found", func(t *testing.T) {
		_, err := ex.ExtractMessage(ctx, model.MustParseIdentifier("0x"+strings.Repeat("cd", 32)))
		assert.True(t, ledger.IsNotFound(err))
	})

	t.Run("not spent", func(t *testing.T) {
		_, err := ex.ExtractMessage(ctx, chain.Mint())
		assert.True(t, IsNotSpent(err))
	})

	t.Run("garbage solution", func(t *testing.T) {
		id := chain.Mint()
		chain.Spend(id, []byte{0xff, 0x01})
		_, err := ex.ExtractMessage(ctx, id)
		assert.True(t, IsMalformedPayload(err))
	})

	t.Run("empty list", func(t *testing.T) {
		id := chain.Mint()
		chain.Spend(id, clvm.Nil.Serialize())
		_, err := ex.ExtractMessage(ctx, id)
		assert.True(t, IsMalformedPayload(err))
	})

	t.Run("pair element zero is reserialized", func(t *testing.T) {
		id := chain.Mint()
		inner := clvm.List(clvm.Atom([]byte("x")))
		chain.Spend(id, clvm.List(inner).Serialize())
		msg, err := ex.ExtractMessage(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, inner.Serialize(), msg)
	})
}

func TestExtractIsRepeatable(t *testing.T) {
	chain := testutil.NewFakeChain()
	ids := chain.PublishStrings("same")
	ex := NewExtractor(chain)

	a, err := ex.ExtractMessage(context.Background(), ids[0])
	require.NoError(t, err)
	b, err := ex.ExtractMessage(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 2, chain.Calls("SpendSolution"))
}
