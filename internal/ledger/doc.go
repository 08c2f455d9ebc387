// Package ledger is the record source chainfile reads singleton chains from.
//
// Source is the narrow interface the rest of the module depends on:
//   - ChildRecords: records whose parent is the given identifier
//   - RecordByID: one record by identifier
//   - SpendSolution: the raw solution of the spend that consumed a record
//
// Client implements Source against a full node's HTTPS RPC API with mutual
// TLS. Transient failures (timeouts, transport errors, 5xx, 429) are retried
// inside the client with exponential backoff; callers only ever see the
// final outcome. A token-bucket limiter spaces requests so fan-out callers
// cannot overwhelm the node.
package ledger
