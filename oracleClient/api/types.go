package api

import "github.com/pushchain/bridge-oracle/oracleClient/store"

// QueryResponse represents the standard query response format
type QueryResponse struct {
	Data interface{} `json:"data"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string `json:"message"`
}

// BatchRequest is the body of POST /api/orders/batch.
type BatchRequest struct {
	IDs []string `json:"ids"`
}

// OrderView is an order together with the peer signatures collected for it.
type OrderView struct {
	store.Order
	Signatures []string `json:"signatures"`
}
