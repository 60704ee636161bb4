package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushchain/bridge-oracle/oracleClient/db"
	"github.com/pushchain/bridge-oracle/oracleClient/orders"
	"github.com/pushchain/bridge-oracle/oracleClient/store"
)

func setupTestRepository(t *testing.T) *orders.Repository {
	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return orders.NewRepository(database.Client(), zerolog.Nop())
}

func seedOrder(t *testing.T, repo *orders.Repository, nonceByte string) *store.Order {
	order := &store.Order{
		Source:      store.ChainSolana,
		Dest:        store.ChainQubic,
		From:        "from",
		To:          "to",
		Amount:      "1000000",
		RelayerFee:  "500",
		Signature:   "own-sig",
		SourceNonce: strings.Repeat(nonceByte, 32),
	}
	require.NoError(t, repo.Create(order))
	return order
}

type failingReader struct {
	OrderReader
	err error
}

func (f failingReader) Ping() error                               { return f.err }
func (f failingReader) FindPendingOrders() ([]store.Order, error) { return nil, f.err }

func serve(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestHandleHealth(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))

	t.Run("Health check returns ok", func(t *testing.T) {
		server := NewServer(setupTestRepository(t), nil, logger, 0)
		w := serve(server, http.MethodGet, "/api/health", "")

		assert.Equal(t, http.StatusOK, w.Code)
		var resp HealthResponse
		decode(t, w, &resp)
		assert.Equal(t, "ok", resp.Status)
		assert.NotEmpty(t, resp.Timestamp)
	})

	t.Run("Storage failure returns 503", func(t *testing.T) {
		server := NewServer(failingReader{err: errors.New("disk gone")}, nil, logger, 0)
		w := serve(server, http.MethodGet, "/api/health", "")

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var resp ErrorResponse
		decode(t, w, &resp)
		assert.Equal(t, "storage unavailable", resp.Message)
	})
}

func TestHandleOrders(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	repo := setupTestRepository(t)
	pending := seedOrder(t, repo, "01")
	ready := seedOrder(t, repo, "02")
	_, err := repo.AddSignatures(ready.ID, []string{"s1", "s2"})
	require.NoError(t, err)
	_, err = repo.MarkReadyForRelay(ready.ID)
	require.NoError(t, err)

	server := NewServer(repo, nil, logger, 0)

	t.Run("Lists pending and relayable orders", func(t *testing.T) {
		w := serve(server, http.MethodGet, "/api/orders", "")
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data []OrderView `json:"data"`
		}
		decode(t, w, &resp)
		require.Len(t, resp.Data, 2)

		byID := map[string]OrderView{}
		for _, o := range resp.Data {
			byID[o.ID] = o
		}
		assert.Equal(t, store.StatusPending, byID[pending.ID].Status)
		assert.Empty(t, byID[pending.ID].Signatures)
		assert.True(t, byID[ready.ID].OracleAcceptToRelay)
		assert.ElementsMatch(t, []string{"s1", "s2"}, byID[ready.ID].Signatures)
	})

	t.Run("Uses camelCase fields", func(t *testing.T) {
		w := serve(server, http.MethodGet, "/api/orders/"+ready.ID, "")
		require.Equal(t, http.StatusOK, w.Code)

		var raw struct {
			Data map[string]any `json:"data"`
		}
		decode(t, w, &raw)
		for _, key := range []string{"id", "source", "dest", "from", "to", "amount", "relayerFee", "signature", "status", "oracleAcceptToRelay", "sourceNonce", "signatures"} {
			assert.Contains(t, raw.Data, key)
		}
	})

	t.Run("Unknown order returns 404", func(t *testing.T) {
		w := serve(server, http.MethodGet, "/api/orders/nope", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Wrong method returns 405", func(t *testing.T) {
		w := serve(server, http.MethodDelete, "/api/orders", "")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})

	t.Run("Storage failure returns generic 500", func(t *testing.T) {
		failing := NewServer(failingReader{OrderReader: repo, err: errors.New("database is locked")}, nil, logger, 0)
		w := serve(failing, http.MethodGet, "/api/orders", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "locked")
	})
}

func TestHandleOrdersBatch(t *testing.T) {
	logger := zerolog.New(zerolog.NewTestWriter(t))
	repo := setupTestRepository(t)
	a := seedOrder(t, repo, "0a")
	b := seedOrder(t, repo, "0b")
	server := NewServer(repo, nil, logger, 0)

	t.Run("Returns de-duplicated orders sorted by id", func(t *testing.T) {
		body := fmt.Sprintf(`{"ids":[%q,%q,%q,"missing"]}`, b.ID, a.ID, b.ID)
		w := serve(server, http.MethodPost, "/api/orders/batch", body)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Data []OrderView `json:"data"`
		}
		decode(t, w, &resp)
		require.Len(t, resp.Data, 2)
		assert.Less(t, resp.Data[0].ID, resp.Data[1].ID)
	})

	tooMany := make([]string, orders.MaxListSize+1)
	for i := range tooMany {
		tooMany[i] = fmt.Sprintf("%q", fmt.Sprintf("id-%d", i))
	}
	badRequests := map[string]string{
		"invalid json": `{"ids":`,
		"empty ids":    `{"ids":[]}`,
		"missing ids":  `{}`,
		"over cap":     `{"ids":[` + strings.Join(tooMany, ",") + `]}`,
	}
	for name, body := range badRequests {
		t.Run(name, func(t *testing.T) {
			w := serve(server, http.MethodPost, "/api/orders/batch", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			var resp ErrorResponse
			decode(t, w, &resp)
			assert.NotEmpty(t, resp.Message)
		})
	}
}
