// Package store contains GORM-backed SQLite models used by the oracle node.
//
// Database Structure (database file: oracle.db):
//
//	data/
//	└── oracle.db
//	    ├── orders
//	    ├── order_signatures
//	    ├── seen_nonces
//	    └── poll_cursors
package store

import (
	"gorm.io/gorm"
)

// Order statuses.
const (
	StatusPending       = "pending"
	StatusReadyForRelay = "ready-for-relay"
	StatusFinalized     = "finalized"
)

// Chain tags.
const (
	ChainSolana = "solana"
	ChainQubic  = "qubic"
)

// Order is a chain-agnostic transfer intent derived from a source chain event.
// ID is a UUID derived from the source nonce and its deletion generation, see
// orders.OrderIDForNonce.
type Order struct {
	ID                  string         `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt           int64          `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt           int64          `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`
	Source              string         `gorm:"not null" json:"source"`
	Dest                string         `gorm:"not null" json:"dest"`
	From                string         `gorm:"column:from_address;not null" json:"from"`
	To                  string         `gorm:"column:to_address;not null" json:"to"`
	Amount              string         `gorm:"not null" json:"amount"`       // base-10 u64
	RelayerFee          string         `gorm:"not null" json:"relayerFee"`   // base-10 u64
	Signature           string         `gorm:"type:text" json:"signature"`   // this node's base64 signature
	Status              string         `gorm:"index;not null" json:"status"` // "pending", "ready-for-relay", "finalized"
	OracleAcceptToRelay bool           `gorm:"index;not null" json:"oracleAcceptToRelay"`
	SourceNonce         string         `gorm:"size:64;not null" json:"sourceNonce"` // lowercase hex of the 32 byte nonce
	SourcePayload       string         `gorm:"type:text" json:"sourcePayload"`      // versioned JSON, see processor.SourcePayload
}

// OrderSignature is one oracle signature collected for an order. Rows are
// append-only: an override marks the existing rows superseded instead of
// removing them, so a re-delivered old signature hits the unique index and
// never counts toward quorum again.
type OrderSignature struct {
	ID         uint   `gorm:"primaryKey" json:"-"`
	CreatedAt  int64  `gorm:"autoCreateTime" json:"createdAt"`
	OrderID    string `gorm:"size:36;not null;uniqueIndex:idx_order_signature;index:idx_order_signature_current,priority:1" json:"orderId"`
	Signature  string `gorm:"not null;uniqueIndex:idx_order_signature" json:"signature"`
	Superseded bool   `gorm:"not null;default:false;index:idx_order_signature_current,priority:2" json:"-"`
}

// SeenNonce records a hub request nonce so it cannot be replayed.
type SeenNonce struct {
	HubID string `gorm:"primaryKey"`
	Kid   string `gorm:"primaryKey"`
	Nonce string `gorm:"primaryKey"`
	Ts    int64  `gorm:"index;not null"` // epoch seconds from X-Hub-Timestamp
}

// PollCursor persists the position of a hub feed so restarts resume where they left off.
type PollCursor struct {
	gorm.Model
	Name   string `gorm:"uniqueIndex;not null"`
	Cursor string
}

// IsChain reports whether tag is a supported chain tag.
func IsChain(tag string) bool {
	return tag == ChainSolana || tag == ChainQubic
}
