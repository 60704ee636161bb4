package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pushchain/bridge-oracle/oracleClient/hubauth"
)

// setupRoutes configures all HTTP routes for the API server.
// /metrics sits outside /api and is not hub authenticated.
func (s *Server) setupRoutes(auth Middleware) *mux.Router {
	r := mux.NewRouter()

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	if auth != nil {
		api.Use(mux.MiddlewareFunc(auth))
	}
	api.Use(s.logHubRequests)
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/orders", s.handleOrders).Methods(http.MethodGet)
	api.HandleFunc("/orders/batch", s.handleOrdersBatch).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", s.handleOrder).Methods(http.MethodGet)

	return r
}

// logHubRequests records which hub issued each /api request.
func (s *Server) logHubRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hubID, ok := hubauth.HubIDFromRequest(r)
		if !ok {
			hubID = "unauthenticated"
		}
		s.logger.Debug().
			Str("hub_id", hubID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("serving hub request")
		next.ServeHTTP(w, r)
	})
}
