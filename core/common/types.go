package common

// Identity is an opaque principal: a user, a service account or the
// governance authority. Stored keys derive from it directly.
type Identity string

// CatalogSubject is the sentinel subject for catalog-level audit events
// that are not tied to any user or subnet.
const CatalogSubject Identity = "catalog"

// TxnRef is a ledger transaction reference (block index) returned by the
// ledger service for a completed transfer.
type TxnRef uint64
