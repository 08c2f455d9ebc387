// Package lineage follows singleton chains and extracts the messages
// carried by their spends.
//
// A record's message only becomes observable once the record is spent, so
// Extractor reads the spend solution of a record and Walker asks for the
// message of each parent after it has seen that parent's child. The first
// hop of a walk therefore never emits a message.
package lineage
