package model

// Coin is the ledger-level value a record wraps.
type Coin struct {
	ParentID   Identifier `json:"parent_coin_info"`
	PuzzleHash Identifier `json:"puzzle_hash"`
	Amount     uint64     `json:"amount"`
}

// ChainRecord is one observed ledger record. Created by the ledger, never by
// chainfile; treat as immutable.
type ChainRecord struct {
	Coin            Coin   `json:"coin"`
	ConfirmedHeight uint32 `json:"confirmed_block_index"`
	SpentHeight     uint32 `json:"spent_block_index"`
	Spent           bool   `json:"spent"`
	Coinbase        bool   `json:"coinbase"`
	Timestamp       uint64 `json:"timestamp"`
}

// ID returns the record identifier derived from its coin.
func (r ChainRecord) ID() Identifier {
	return r.Coin.ID()
}

// IsSpent reports whether the record has been consumed. Some nodes only set
// the height, so either signal counts.
func (r ChainRecord) IsSpent() bool {
	return r.Spent || r.SpentHeight > 0
}

// LineageStep is one hop of a lineage walk.
type LineageStep struct {
	Parent  Identifier `json:"parent"`
	Current Identifier `json:"current"`
}

// Hop is a spent record on the chain together with its message.
type Hop struct {
	ID      Identifier `json:"id"`
	Message []byte     `json:"message"`
}

// ChunkRef maps one expected chunk hash to the identifier carrying it.
type ChunkRef struct {
	Hash   string     `json:"hash"`
	Source Identifier `json:"source"`
}

// HashChunks is the ordered chunk layout of a file. Order is the
// concatenation order used by reassembly.
type HashChunks []ChunkRef

// Hashes returns the expected chunk hashes in order.
func (h HashChunks) Hashes() []string {
	out := make([]string, len(h))
	for i, ref := range h {
		out[i] = ref.Hash
	}
	return out
}

// FileDescriptor is the published index of a file.
type FileDescriptor struct {
	Filename   string     `json:"filename"`
	Hash       string     `json:"hash"`
	MediaType  string     `json:"mediaType,omitempty"`
	HashChunks HashChunks `json:"hashChunks"`
}
