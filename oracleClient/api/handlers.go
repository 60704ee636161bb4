package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pushchain/bridge-oracle/oracleClient/orders"
	"github.com/pushchain/bridge-oracle/oracleClient/store"
)

const maxBatchBodyBytes = 64 * 1024

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.orders.Ping(); err != nil {
		s.logger.Error().Err(err).Msg("storage liveness probe failed")
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Message: "storage unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleOrders handles GET /api/orders
func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	pending, err := s.orders.FindPendingOrders()
	if err != nil {
		s.internalError(w, err, "failed to list pending orders")
		return
	}
	relayable, err := s.orders.FindRelayableOrders()
	if err != nil {
		s.internalError(w, err, "failed to list relayable orders")
		return
	}

	views, err := s.withSignatures(append(pending, relayable...))
	if err != nil {
		s.internalError(w, err, "failed to load order signatures")
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: views})
}

// handleOrder handles GET /api/orders/{id}
func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	order, err := s.orders.FindByID(id)
	if err != nil {
		s.internalError(w, err, "failed to load order")
		return
	}
	if order == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Message: fmt.Sprintf("order %s not found", id)})
		return
	}

	views, err := s.withSignatures([]store.Order{*order})
	if err != nil {
		s.internalError(w, err, "failed to load order signatures")
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: views[0]})
}

// handleOrdersBatch handles POST /api/orders/batch
func (s *Server) handleOrdersBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBatchBodyBytes))
	if err == nil {
		err = json.Unmarshal(body, &req)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "invalid request body"})
		return
	}
	if len(req.IDs) == 0 {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: "ids must not be empty"})
		return
	}

	found, err := s.orders.ByIDs(req.IDs)
	if errors.Is(err, orders.ErrTooManyIDs) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: fmt.Sprintf("at most %d ids per request", orders.MaxListSize)})
		return
	}
	if err != nil {
		s.internalError(w, err, "failed to load orders")
		return
	}

	views, err := s.withSignatures(found)
	if err != nil {
		s.internalError(w, err, "failed to load order signatures")
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Data: views})
}

func (s *Server) withSignatures(list []store.Order) ([]OrderView, error) {
	ids := make([]string, len(list))
	for i, o := range list {
		ids[i] = o.ID
	}
	sigs, err := s.orders.SignaturesFor(ids)
	if err != nil {
		return nil, err
	}
	views := make([]OrderView, len(list))
	for i, o := range list {
		views[i] = OrderView{Order: o, Signatures: sigs[o.ID]}
		if views[i].Signatures == nil {
			views[i].Signatures = []string{}
		}
	}
	return views, nil
}

func (s *Server) internalError(w http.ResponseWriter, err error, msg string) {
	s.logger.Error().Err(err).Msg(msg)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
