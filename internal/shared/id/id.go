// Package id generates prefixed, sortable identifiers.
//
// Every install and uninstall transaction gets a TxnID and every HTTP request
// gets a RequestID. IDs are monotonic ULIDs, so ids issued by one daemon sort
// in issue order even within the same millisecond.
package id

import (
	"crypto/rand"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// TxnID identifies an install or uninstall transaction
type TxnID string

// RequestID identifies an API request
type RequestID string

const (
	TxnPrefix     = "txn"
	RequestPrefix = "req"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

func next(prefix string) string {
	mu.Lock()
	u := ulid.MustNew(ulid.Now(), entropy)
	mu.Unlock()
	return prefix + "_" + u.String()
}

// NewTxnID generates a transaction ID
func NewTxnID() TxnID {
	return TxnID(next(TxnPrefix))
}

// NewRequestID generates a request ID
func NewRequestID() RequestID {
	return RequestID(next(RequestPrefix))
}

func (id TxnID) String() string     { return string(id) }
func (id RequestID) String() string { return string(id) }

// IsValid checks whether s is a ULID, with or without a prefix
func IsValid(s string) bool {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	_, err := ulid.ParseStrict(s)
	return err == nil
}
