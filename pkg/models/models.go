package models

import (
	"math/big"
	"time"
)

// DefaultDecimals is the display fallback used until the token reports its
// own decimals. It is never used to encode amounts for a write.
const DefaultDecimals = 18

// Direction tells whether value left or arrived at the active account.
type Direction string

const (
	Inbound  Direction = "in"
	Outbound Direction = "out"
)

// TransferEvent is a decoded ERC-20 Transfer log.
type TransferEvent struct {
	TransactionHash string
	From            string
	To              string
	RawAmount       *big.Int
	BlockNumber     uint64
	LogIndex        uint
}

// TransactionRecord is a display-ready history entry.
type TransactionRecord struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Amount     string    `json:"amount"`
	ObservedAt time.Time `json:"observed_at"`
	Direction  Direction `json:"direction"`
}

// Counterparty returns the other side of the transfer relative to the
// active account.
func (r TransactionRecord) Counterparty() string {
	if r.Direction == Outbound {
		return r.To
	}
	return r.From
}

// TokenMetadata holds the token's name, symbol and decimals.
type TokenMetadata struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// WriteStatus tracks the lifecycle of the last submitted write.
type WriteStatus struct {
	Action     string `json:"action,omitempty"` // "transfer" or "mint"
	Pending    bool   `json:"pending"`
	Confirming bool   `json:"confirming"`
	Confirmed  bool   `json:"confirmed"`
	TxHash     string `json:"tx_hash,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Busy reports whether a write is awaiting signature or confirmation.
func (s WriteStatus) Busy() bool {
	return s.Pending || s.Confirming
}

// Draft is the in-progress transfer input.
type Draft struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// BalancePoint holds a timestamped balance value.
type BalancePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Snapshot is a read-only view of the dashboard state.
type Snapshot struct {
	Account          string              `json:"account,omitempty"`
	Connected        bool                `json:"connected"`
	Token            TokenMetadata       `json:"token"`
	MetadataResolved bool                `json:"metadata_resolved"`
	Balance          *big.Int            `json:"balance,omitempty"`
	BalanceDisplay   string              `json:"balance_display"`
	History          []TransactionRecord `json:"history"`
	Write            WriteStatus         `json:"write"`
	Draft            Draft               `json:"draft"`
	LastUpdate       time.Time           `json:"last_update"`
}

// ChainResult holds test results for the configured RPC endpoint.
type ChainResult struct {
	RPCURL          string `json:"rpc_url"`
	Status          string `json:"status"` // "ok" or "error"
	ConfigChainID   int64  `json:"config_chain_id"`
	ObservedChainID int64  `json:"observed_chain_id,omitempty"`
	ChainIDUpdated  bool   `json:"chain_id_updated"`
	LatencyMs       int64  `json:"latency_ms,omitempty"`
	Error           string `json:"error,omitempty"`
}

// TokenResult holds test results for the configured token contract.
type TokenResult struct {
	Address  string `json:"address"`
	Status   string `json:"status"`
	Name     string `json:"name,omitempty"`
	Symbol   string `json:"symbol,omitempty"`
	Decimals int    `json:"decimals,omitempty"`
	Error    string `json:"error,omitempty"`
}

// TestReport holds the results of the configuration test.
type TestReport struct {
	ConfigPath      string       `json:"config_path"`
	ValidStructure  bool         `json:"valid_structure"`
	StructureErrors []string     `json:"structure_errors,omitempty"`
	HasSigningKey   bool         `json:"has_signing_key"`
	Chain           *ChainResult `json:"chain,omitempty"`
	Token           *TokenResult `json:"token,omitempty"`
	ConfigUpdated   bool         `json:"config_updated"`
	SaveError       string       `json:"save_error,omitempty"`
	DryRun          bool         `json:"dry_run"`
}
