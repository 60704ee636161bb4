package hub

import "encoding/json"

// StoredEvent is a bridge event a hub has recorded, together with the Solana
// transaction that emitted it.
type StoredEvent struct {
	ID        int64           `json:"id"`
	Chain     string          `json:"chain"`
	Type      string          `json:"type"`      // outbound | inbound | override_outbound
	Signature string          `json:"signature"` // source transaction signature
	Payload   json.RawMessage `json:"payload"`
}

// EventsPage is the response of GET /api/orders/events.
type EventsPage struct {
	Data   []StoredEvent `json:"data"`
	Cursor int64         `json:"cursor"`
}

// SignatureBatch lists the oracle signatures a hub collected for one order.
type SignatureBatch struct {
	OrderID    string   `json:"orderId"`
	Signatures []string `json:"signatures"`
}

// SignaturesPage is the response of GET /api/orders/signatures.
type SignaturesPage struct {
	Data []SignatureBatch `json:"data"`
}
