package api

import (
	"net/http"

	"github.com/pushchain/bridge-oracle/oracleClient/store"
)

// OrderReader defines the repository methods needed by the API server.
type OrderReader interface {
	FindPendingOrders() ([]store.Order, error)
	FindRelayableOrders() ([]store.Order, error)
	FindByID(id string) (*store.Order, error)
	ByIDs(ids []string) ([]store.Order, error)
	SignaturesFor(orderIDs []string) (map[string][]string, error)
	Ping() error
}

// Middleware wraps the /api routes, e.g. with hub authentication.
type Middleware func(http.Handler) http.Handler
