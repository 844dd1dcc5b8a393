package core

import "github.com/google/uuid"

// =============================================================================
// IDENTIFIERS - Strong typing prevents mixing employee/session/request IDs
// =============================================================================

type EmployeeID string
type SessionID string
type TransactionID string
type RequestID string

func NewSessionID() SessionID         { return SessionID("sess-" + uuid.NewString()) }
func NewTransactionID() TransactionID { return TransactionID("tx-" + uuid.NewString()) }
func NewRequestID() RequestID         { return RequestID("req-" + uuid.NewString()) }
