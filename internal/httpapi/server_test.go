package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pizzeria/internal/order"
	"pizzeria/internal/payment"
	"pizzeria/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	store *storage.Store
	srv   *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := storage.New(logger)
	store.Connect()

	api := NewServer(store, order.NewService(store, nil, nil, logger), payment.NewLedger(store, nil, nil, logger), logger)
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return &testServer{store: store, srv: srv}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, reader)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func (ts *testServer) text(t *testing.T, path string) (int, string) {
	t.Helper()

	resp, err := http.Get(ts.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func (ts *testServer) createUser(t *testing.T) int64 {
	t.Helper()
	code, user := ts.do(t, http.MethodPost, "/users", map[string]any{"username": "usuario1", "email": "u1@example.com"})
	require.Equal(t, http.StatusCreated, code)
	return int64(user["id"].(float64))
}

func (ts *testServer) createOrder(t *testing.T, userID int64) int64 {
	t.Helper()
	code, o := ts.do(t, http.MethodPost, "/orders", map[string]any{
		"user_id": userID,
		"pizzas": []map[string]any{
			{"name": "Margarita", "size": "Medium", "price": "10.99", "toppings": []string{"basil"}},
			{"name": "Pepperoni", "size": "Large", "price": "14.99"},
		},
	})
	require.Equal(t, http.StatusCreated, code)
	return int64(o["id"].(float64))
}

func TestOrderAndPaymentFlow(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.createUser(t)
	orderID := ts.createOrder(t, userID)

	code, o := ts.do(t, http.MethodGet, "/orders/1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(orderID), o["id"])
	assert.Equal(t, "PENDING", o["status"])
	assert.Equal(t, "25.98", o["total_price"])
	assert.Len(t, o["pizzas"], 2)

	code, paid := ts.do(t, http.MethodPost, "/orders/1/payments", map[string]any{
		"card_number": "4111111111111111", "expiry": "12/25", "cvv": "123",
	})
	require.Equal(t, http.StatusCreated, code)
	txID := paid["transaction_id"].(string)
	assert.NotEmpty(t, txID)
	assert.Equal(t, "COMPLETED", paid["status"])

	code, rec := ts.do(t, http.MethodGet, "/payments/"+txID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "COMPLETED", rec["status"])
	assert.Equal(t, "XXXX-XXXX-XXXX-1111", rec["masked_card"])

	code, o = ts.do(t, http.MethodGet, "/orders/1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "PROCESSING", o["status"])
	assert.Equal(t, txID, o["payment_transaction_id"])

	code, refund := ts.do(t, http.MethodPost, "/payments/"+txID+"/refund", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, refund["refunded"])

	code, _ = ts.do(t, http.MethodPost, "/payments/"+txID+"/refund", nil)
	assert.Equal(t, http.StatusConflict, code)

	code, history := ts.text(t, "/orders/1/payments")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, history, txID)
	assert.Contains(t, history, "Status: REFUNDED")
	assert.Contains(t, history, "Refund:")

	code, list := ts.do(t, http.MethodGet, "/users/1/orders", nil)
	require.Equal(t, http.StatusOK, code)
	orders := list["orders"].([]any)
	require.Len(t, orders, 1)
	assert.Equal(t, "CANCELLED", orders[0].(map[string]any)["status"])
}

func TestUpdateAndCancelOrder(t *testing.T) {
	ts := newTestServer(t)
	orderID := ts.createOrder(t, ts.createUser(t))
	require.Equal(t, int64(1), orderID)

	code, _ := ts.do(t, http.MethodPatch, "/orders/1/status", map[string]string{"status": "DELIVERED"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(t, http.MethodPatch, "/orders/1/status", map[string]string{"status": "cooking"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, o := ts.do(t, http.MethodPatch, "/orders/1/status", map[string]string{"status": "PROCESSING"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "PROCESSING", o["status"])

	code, res := ts.do(t, http.MethodPost, "/orders/1/cancel", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, res["cancelled"])

	code, _ = ts.do(t, http.MethodPost, "/orders/1/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.createUser(t)
	ts.createOrder(t, userID)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"user without name", http.MethodPost, "/users", map[string]string{"email": "x@example.com"}, http.StatusBadRequest},
		{"order for unknown user", http.MethodPost, "/orders", map[string]any{"user_id": 99, "pizzas": []any{map[string]any{"name": "x", "price": "1"}}}, http.StatusNotFound},
		{"order without pizzas", http.MethodPost, "/orders", map[string]any{"user_id": userID}, http.StatusBadRequest},
		{"non-numeric order id", http.MethodGet, "/orders/abc", nil, http.StatusBadRequest},
		{"zero order id", http.MethodGet, "/orders/0", nil, http.StatusBadRequest},
		{"unknown order", http.MethodGet, "/orders/42", nil, http.StatusNotFound},
		{"bad card", http.MethodPost, "/orders/1/payments", map[string]string{"card_number": "1234", "expiry": "12/25", "cvv": "123"}, http.StatusBadRequest},
		{"pay unknown order", http.MethodPost, "/orders/42/payments", map[string]string{"card_number": "4111111111111111", "expiry": "12/25", "cvv": "123"}, http.StatusNotFound},
		{"unknown transaction", http.MethodGet, "/payments/nope", nil, http.StatusNotFound},
		{"refund unknown transaction", http.MethodPost, "/payments/nope/refund", nil, http.StatusNotFound},
		{"orders of unknown user", http.MethodGet, "/users/7/orders", nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := ts.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, code)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestInvalidJSONBody(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Post(ts.srv.URL+"/users", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHealthAndDisconnectedStore(t *testing.T) {
	ts := newTestServer(t)
	ts.createOrder(t, ts.createUser(t))

	code, health := ts.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, health["connected"])
	assert.Equal(t, float64(1), health["users"])
	assert.Equal(t, float64(2), health["pizzas"])
	assert.Equal(t, float64(1), health["orders"])

	ts.store.Disconnect()

	code, health = ts.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, false, health["connected"])

	code, body := ts.do(t, http.MethodGet, "/orders/1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "store unavailable", body["error"])
}
