// Package models defines the ledger records of Splitledger.
//
// # Records
//
// The two balance-affecting records are:
//   - Expense: money one member fronted on behalf of some participants
//   - Settlement: money that actually changed hands between two members
//
// Both embed RecordMeta, which carries identity, audit timestamps, the
// soft-deletion marker and the storage-assigned Version used for
// optimistic concurrency.
//
// # Derived values
//
// Net balances and Debts are never persisted; they are recomputed from the
// non-deleted records of a group by the calculator package.
//
// # Design Principles
//
//  1. Amounts are decimal.Decimal, never float64.
//  2. Records reference users and groups by ID strings only.
//  3. Deletion is a marker, never a physical removal.
package models
