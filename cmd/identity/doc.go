// Package identity owns Account and AuthCredential persistence and the
// password hashing primitives used by the auth workflow.
//
// Every account has exactly one credential record. The two rows are written
// without a cross-table transaction (the hosted store offers none); a failed
// credential insert triggers a compensating delete of the account row.
package identity
