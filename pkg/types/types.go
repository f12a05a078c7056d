// Package types defines the core identifiers and enumerations shared
// across the exchange: token keys, market and order ids, and the small
// enums (Side, OrderType, PairSide) that the rest of the tree builds on.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/bits"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// AccountID identifies a user account. The exchange borrows go-ethereum's
// 20-byte address type as a convenient, already-comparable account key.
type AccountID = common.Address

// TokenKind distinguishes the three TokenType variants.
type TokenKind uint8

const (
	TokenNative TokenKind = iota
	TokenFungible
	TokenMultiFungible
)

// TokenType is a tagged variant over the three kinds of token the
// exchange can custody: the host's native currency, a fungible token
// contract, or a subtoken of a multi-token contract.
type TokenType struct {
	Kind      TokenKind
	AccountID string // fungible / multi-fungible: the token contract account
	SubtokenID string // multi-fungible only
}

// NativeDecimals is the fixed decimal count of the host's native currency.
const NativeDecimals = 24

func Native() TokenType { return TokenType{Kind: TokenNative} }

func FungibleToken(account string) TokenType {
	return TokenType{Kind: TokenFungible, AccountID: account}
}

func MultiFungibleToken(account, sub string) TokenType {
	return TokenType{Kind: TokenMultiFungible, AccountID: account, SubtokenID: sub}
}

// Key renders the bit-exact string key used to index balances and to
// build a MarketId: "NEAR" | "ft:<id>" | "mft:<id>:<sub>".
func (t TokenType) Key() string {
	switch t.Kind {
	case TokenNative:
		return "NEAR"
	case TokenFungible:
		return "ft:" + t.AccountID
	case TokenMultiFungible:
		return "mft:" + t.AccountID + ":" + t.SubtokenID
	default:
		return ""
	}
}

func (t TokenType) Equal(o TokenType) bool { return t.Key() == o.Key() }

// MarketID is a 32-byte hash of the five fields that uniquely determine
// a market: the contract's own account, and both tokens' key+lot size.
type MarketID [32]byte

func NewMarketID(contractAccount, baseKey string, baseLot uint64, quoteKey string, quoteLot uint64) MarketID {
	s := fmt.Sprintf("%s %s %d %s %d", contractAccount, baseKey, baseLot, quoteKey, quoteLot)
	return sha256.Sum256([]byte(s))
}

func (m MarketID) String() string { return fmt.Sprintf("%x", m[:]) }

// MarshalText lets MarketID serve as a JSON object key (account records
// index open orders by market) and as a plain JSON string elsewhere.
func (m MarketID) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MarketID) UnmarshalText(text []byte) error {
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(decoded) != len(m) {
		return fmt.Errorf("types: MarketID must decode to %d bytes, got %d", len(m), len(decoded))
	}
	copy(m[:], decoded)
	return nil
}

// SequenceNumber is a process-wide, monotonically increasing counter
// used to break price ties and to encode OrderID ordering.
type SequenceNumber uint64

// OrderID packs (price_lots, sequence_number) into a single 128-bit
// value so that, for one side of one market, integer ordering of
// OrderID equals price-time priority. High 64 bits are the price in
// lots (sign is handled by the caller choosing ascending vs descending
// comparison per side); low 64 bits are the sequence number.
type OrderID struct {
	PriceLots uint64
	Sequence  SequenceNumber
}

func NewOrderID(priceLots uint64, seq SequenceNumber) OrderID {
	return OrderID{PriceLots: priceLots, Sequence: seq}
}

// Packed returns the 128-bit big.Int-style packing as two uint64 words,
// high word first, matching the spec's "single comparable number" idea
// without requiring a big.Int import at every call site.
func (o OrderID) Packed() (hi, lo uint64) { return o.PriceLots, uint64(o.Sequence) }

// Less compares two OrderIDs as the packed 128-bit value would compare,
// for a single side's ascending iteration order.
func (o OrderID) Less(other OrderID) bool {
	if o.PriceLots != other.PriceLots {
		return o.PriceLots < other.PriceLots
	}
	return o.Sequence < other.Sequence
}

func (o OrderID) String() string {
	return fmt.Sprintf("%016x%016x", o.PriceLots, uint64(o.Sequence))
}

// MarshalText lets OrderID serve as a JSON object key, needed because
// Account.OpenOrders is indexed per market by OrderID.
func (o OrderID) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *OrderID) UnmarshalText(text []byte) error {
	if len(text) != 32 {
		return fmt.Errorf("types: OrderID text must be 32 hex chars, got %d", len(text))
	}
	hi, err := strconv.ParseUint(string(text[:16]), 16, 64)
	if err != nil {
		return err
	}
	lo, err := strconv.ParseUint(string(text[16:]), 16, 64)
	if err != nil {
		return err
	}
	o.PriceLots = hi
	o.Sequence = SequenceNumber(lo)
	return nil
}

// Side is the direction of an order.
type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "Buy"
	}
	return "Sell"
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// OrderType is the execution policy of an incoming order.
type OrderType uint8

const (
	Limit OrderType = iota
	Market
	FillOrKill
	ImmediateOrCancel
	PostOnly
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "Limit"
	case Market:
		return "Market"
	case FillOrKill:
		return "FillOrKill"
	case ImmediateOrCancel:
		return "ImmediateOrCancel"
	case PostOnly:
		return "PostOnly"
	default:
		return "Unknown"
	}
}

// PairSide distinguishes which leg of a market a quantity refers to.
type PairSide uint8

const (
	Base PairSide = iota
	Quote
)

// PlaceOrderOutcome summarizes what happened to an incoming order.
type PlaceOrderOutcome uint8

const (
	OutcomeFilled PlaceOrderOutcome = iota
	OutcomePartialFill
	OutcomePosted
	OutcomeRejected
)

func (o PlaceOrderOutcome) String() string {
	switch o {
	case OutcomeFilled:
		return "Filled"
	case OutcomePartialFill:
		return "PartialFill"
	case OutcomePosted:
		return "Posted"
	case OutcomeRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}

// ContractState is the global lifecycle state machine.
type ContractState uint8

const (
	ContractActive ContractState = iota
	ContractPaused
	ContractCancelOnly
)

func (s ContractState) String() string {
	switch s {
	case ContractActive:
		return "Active"
	case ContractPaused:
		return "Paused"
	case ContractCancelOnly:
		return "CancelOnly"
	default:
		return "Unknown"
	}
}

// MustFitUint64 checks a 128-bit-ish computation (represented here by two
// uint64 words, hi:lo) downcasts cleanly into a single uint64, matching
// the spec's "every final conversion to 128-bit is checked" policy one
// level down for values that must ultimately become a lot count.
func MustFitUint64(hi, lo uint64) (uint64, bool) {
	if hi != 0 {
		return 0, false
	}
	return lo, true
}

// AddWithOverflowCheck adds two uint64s, reporting overflow instead of
// wrapping, for the balance-arithmetic call sites that aren't routed
// through the U256 path in package lots.
func AddWithOverflowCheck(a, b uint64) (uint64, bool) {
	sum, carry := bits.Add64(a, b, 0)
	return sum, carry == 0
}
