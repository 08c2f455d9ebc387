package ledger

import (
	"context"

	"github.com/roach88/chainfile/internal/model"
)

// Source answers the three lineage queries.
type Source interface {
	// ChildRecords returns records created by the spend of parent, spent or
	// not. An empty result means parent is the chain tip.
	ChildRecords(ctx context.Context, parent model.Identifier) ([]model.ChainRecord, error)

	// RecordByID returns the record or an error matching IsNotFound.
	RecordByID(ctx context.Context, id model.Identifier) (model.ChainRecord, error)

	// SpendSolution returns the serialized solution of the spend of id at
	// the given block height.
	SpendSolution(ctx context.Context, id model.Identifier, height uint32) ([]byte, error)
}
