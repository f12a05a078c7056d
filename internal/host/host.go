// Package host models the small set of environment primitives the
// exchange core treats as external collaborators of the embedding
// runtime: the storage-byte-cost price, block timestamp, hashing, and
// the contract's own account id. Everything else about the runtime
// (promise scheduling, signer identity, the admin CLI, the upgrade
// path) is out of scope and has no representation here.
package host

import (
	"crypto/sha256"
	"time"
)

// Host is the seam between the exchange core and its embedding
// runtime. An in-process implementation is provided for cmd/node and
// for tests; a real embedding would supply one backed by the actual
// runtime's host functions.
type Host interface {
	StorageByteCost() uint64
	BlockTimestamp() int64
	SHA256(data []byte) [32]byte
	CurrentAccountID() string
}

// InProcess is a Host backed by the local process clock and a fixed,
// configured byte cost — suitable for cmd/node and for tests that do
// not need to control time.
type InProcess struct {
	ByteCost  uint64
	AccountID string
}

func NewInProcess(byteCost uint64, accountID string) *InProcess {
	return &InProcess{ByteCost: byteCost, AccountID: accountID}
}

func (h *InProcess) StorageByteCost() uint64 { return h.ByteCost }
func (h *InProcess) BlockTimestamp() int64   { return time.Now().UnixNano() }
func (h *InProcess) SHA256(data []byte) [32]byte { return sha256.Sum256(data) }
func (h *InProcess) CurrentAccountID() string    { return h.AccountID }
