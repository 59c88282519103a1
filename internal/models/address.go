package models

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// Address is the marketplace identity key used for agents, owners,
// issuers and assignees. Addresses are opaque; the engine only compares
// them for equality.
type Address string

// ZeroAddress is the absent identity (unassigned agent, removed owner).
const ZeroAddress Address = ""

// EscrowAddress is the internal ledger account that holds task escrow.
const EscrowAddress Address = "0xescrow"

func (a Address) IsZero() bool { return a == ZeroAddress }

// NormalizeAddress lowercases and trims an address so lookups are
// case-insensitive.
func NormalizeAddress(s string) Address {
	return Address(strings.ToLower(strings.TrimSpace(s)))
}

// NewAddress generates a fresh random marketplace address.
func NewAddress() Address {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return Address("0x" + hex.EncodeToString(b))
}
