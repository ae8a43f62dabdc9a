package domain

import "time"

// ContextEntry is a key-scoped piece of shared project context.
type ContextEntry struct {
	ContextKey  string
	Value       any
	Description string
	UpdatedBy   string
	UpdatedAt   time.Time
}

// ContextHistoryEntry is one append-only row of a context key's change log.
type ContextHistoryEntry struct {
	ContextKey string
	Value      any
	UpdatedBy  string
	UpdatedAt  time.Time
}

// MaxContextValueBytes bounds the serialized size of a single context value.
const MaxContextValueBytes = 64 * 1024
