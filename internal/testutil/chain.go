package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/roach88/chainfile/internal/clvm"
	"github.com/roach88/chainfile/internal/ledger"
	"github.com/roach88/chainfile/internal/model"
)

// FakeChain is an in-memory ledger.Source holding synthetic singleton
// chains. Records are minted, spent with CLVM-encoded solutions, and can be
// made to fail per identifier.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeChain struct {
	mu        sync.Mutex
	heights   *HeightClock
	puzzle    model.Identifier
	seq       uint64
	records   map[model.Identifier]model.ChainRecord
	children  map[model.Identifier][]model.Identifier
	solutions map[model.Identifier][]byte
	failures  map[model.Identifier]error
	calls     map[string]int
}

var _ ledger.Source = (*FakeChain)(nil)

// NewFakeChain creates an empty fake ledger.
func NewFakeChain() *FakeChain {
	return &FakeChain{
		heights:   NewHeightClock(),
		puzzle:    sha256.Sum256([]byte("chainfile-test-singleton")),
		records:   make(map[model.Identifier]model.ChainRecord),
		children:  make(map[model.Identifier][]model.Identifier),
		solutions: make(map[model.Identifier][]byte),
		failures:  make(map[model.Identifier]error),
		calls:     make(map[string]int),
	}
}

// Mint creates a fresh unspent record with a unique synthetic parent.
func (f *FakeChain) Mint() model.Identifier {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	var seed [8]byte
	binary.BigEndian.PutUint64(seed[:], f.seq)
	genesis := model.Identifier(sha256.Sum256(append([]byte("genesis"), seed[:]...)))
	return f.addLocked(genesis, 1)
}

// AddChild creates an extra unspent record whose parent is id. Used to
// build forks.
func (f *FakeChain) AddChild(id model.Identifier) model.Identifier {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return f.addLocked(id, f.seq+1)
}

// Spend marks id spent with the given serialized solution and creates its
// single child. It returns the child identifier.
func (f *FakeChain) Spend(id model.Identifier, solution []byte) model.Identifier {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.records[id]
	if !ok {
		panic(fmt.Sprintf("fake chain: spend of unknown record %s", id))
	}
	rec.Spent = true
	rec.SpentHeight = f.heights.Next()
	f.records[id] = rec
	f.solutions[id] = solution
	return f.addLocked(id, 1)
}

// SpendMessage spends id with a solution whose first element is message.
func (f *FakeChain) SpendMessage(id model.Identifier, message []byte) model.Identifier {
	return f.Spend(id, MessageSolution(message))
}

// Publish mints a record and spends it once per message. It returns every
// record on the chain in order; the last one is the unspent tip.
func (f *FakeChain) Publish(messages ...[]byte) []model.Identifier {
	ids := []model.Identifier{f.Mint()}
	for _, msg := range messages {
		ids = append(ids, f.SpendMessage(ids[len(ids)-1], msg))
	}
	return ids
}

// PublishStrings is Publish for text messages.
func (f *FakeChain) PublishStrings(messages ...string) []model.Identifier {
	raw := make([][]byte, len(messages))
	for i, m := range messages {
		raw[i] = []byte(m)
	}
	return f.Publish(raw...)
}

// FailOn makes every query touching id return err.
func (f *FakeChain) FailOn(id model.Identifier, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[id] = err
}

// Calls returns how many times the named method was invoked.
func (f *FakeChain) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// ChildRecords implements ledger.Source.
func (f *FakeChain) ChildRecords(ctx context.Context, parent model.Identifier) ([]model.ChainRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["ChildRecords"]++

	if err := f.checkLocked(ctx, parent); err != nil {
		return nil, err
	}
	var out []model.ChainRecord
	for _, child := range f.children[parent] {
		out = append(out, f.records[child])
	}
	return out, nil
}

// RecordByID implements ledger.Source.
func (f *FakeChain) RecordByID(ctx context.Context, id model.Identifier) (model.ChainRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["RecordByID"]++

	if err := f.checkLocked(ctx, id); err != nil {
		return model.ChainRecord{}, err
	}
	rec, ok := f.records[id]
	if !ok {
		return model.ChainRecord{}, fmt.Errorf("record %s: %w", id, ledger.ErrRecordNotFound)
	}
	return rec, nil
}

// SpendSolution implements ledger.Source.
func (f *FakeChain) SpendSolution(ctx context.Context, id model.Identifier, height uint32) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["SpendSolution"]++

	if err := f.checkLocked(ctx, id); err != nil {
		return nil, err
	}
	rec, ok := f.records[id]
	if !ok || !rec.IsSpent() || rec.SpentHeight != height {
		return nil, fmt.Errorf("solution %s at %d: %w", id, height, ledger.ErrRecordNotFound)
	}
	return f.solutions[id], nil
}

func (f *FakeChain) checkLocked(ctx context.Context, id model.Identifier) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.failures[id]
}

func (f *FakeChain) addLocked(parent model.Identifier, amount uint64) model.Identifier {
	rec := model.ChainRecord{
		Coin: model.Coin{
			ParentID:   parent,
			PuzzleHash: f.puzzle,
			Amount:     amount,
		},
		ConfirmedHeight: f.heights.Current(),
	}
	id := rec.ID()
	f.records[id] = rec
	f.children[parent] = append(f.children[parent], id)
	return id
}

// MessageSolution encodes message as the first element of a solution list.
func MessageSolution(message []byte) []byte {
	return clvm.List(clvm.Atom(message), clvm.Nil).Serialize()
}
