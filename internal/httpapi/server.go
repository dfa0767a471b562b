package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"pizzeria/internal/apperr"
	"pizzeria/internal/model"
	"pizzeria/internal/order"
	"pizzeria/internal/payment"
	"pizzeria/internal/storage"

	"github.com/shopspring/decimal"
)

type Server struct {
	store    *storage.Store
	orderSvc *order.Service
	ledger   *payment.Ledger
	logger   *slog.Logger
	mux      *http.ServeMux
}

func NewServer(store *storage.Store, orderSvc *order.Service, ledger *payment.Ledger, logger *slog.Logger) *Server {
	s := &Server{
		store:    store,
		orderSvc: orderSvc,
		ledger:   ledger,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.health)
	s.mux.HandleFunc("POST /users", s.createUser)
	s.mux.HandleFunc("GET /users/{userID}/orders", s.listUserOrders)
	s.mux.HandleFunc("POST /orders", s.createOrder)
	s.mux.HandleFunc("GET /orders/{orderID}", s.getOrder)
	s.mux.HandleFunc("PATCH /orders/{orderID}/status", s.updateOrderStatus)
	s.mux.HandleFunc("POST /orders/{orderID}/cancel", s.cancelOrder)
	s.mux.HandleFunc("POST /orders/{orderID}/payments", s.processPayment)
	s.mux.HandleFunc("GET /orders/{orderID}/payments", s.paymentHistory)
	s.mux.HandleFunc("GET /payments/{transactionID}", s.verifyPayment)
	s.mux.HandleFunc("POST /payments/{transactionID}/refund", s.refundPayment)
}

// HandleFunc registers an extra route, such as the websocket stream.
func (s *Server) HandleFunc(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if !s.store.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"connected": false})
		return
	}

	resp := map[string]any{"connected": true}
	for _, kind := range []storage.Kind{model.KindUser, model.KindPizza, model.KindOrder} {
		n, err := s.store.Count(kind)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		resp[string(kind)] = n
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username    string `json:"username"`
		Email       string `json:"email"`
		Address     string `json:"address"`
		PhoneNumber string `json:"phone_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "username is required")
		return
	}

	user := &model.User{
		Username:    req.Username,
		Email:       req.Email,
		Address:     req.Address,
		PhoneNumber: req.PhoneNumber,
	}
	if _, err := s.store.Save(user); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) listUserOrders(w http.ResponseWriter, r *http.Request) {
	user, err := s.userFromPath(r)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	orders, err := s.orderSvc.GetUserOrders(r.Context(), user)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

type pizzaRequest struct {
	Name     string          `json:"name"`
	Size     string          `json:"size"`
	Toppings []string        `json:"toppings"`
	Price    decimal.Decimal `json:"price"`
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int64          `json:"user_id"`
		Pizzas []pizzaRequest `json:"pizzas"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := s.findUser(req.UserID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	pizzas := make([]*model.Pizza, 0, len(req.Pizzas))
	for _, p := range req.Pizzas {
		pizza := model.NewPizza(p.Name, p.Size, p.Price)
		for _, t := range p.Toppings {
			pizza.AddTopping(t)
		}
		pizzas = append(pizzas, pizza)
	}

	o, err := s.orderSvc.CreateOrder(r.Context(), user, pizzas)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderID")
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	o, err := s.orderSvc.GetOrderByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderID")
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	status, err := model.ParseStatus(req.Status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	o, err := s.orderSvc.UpdateOrderStatus(r.Context(), id, status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderID")
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	cancelled, err := s.orderSvc.CancelOrder(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": id, "cancelled": cancelled})
}

func (s *Server) processPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderID")
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	var req struct {
		CardNumber string `json:"card_number"`
		Expiry     string `json:"expiry"`
		CVV        string `json:"cvv"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	o, err := s.orderSvc.GetOrderByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	txID, err := s.ledger.ProcessPayment(r.Context(), o, payment.Card{
		Number: req.CardNumber,
		Expiry: req.Expiry,
		CVV:    req.CVV,
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"transaction_id": txID,
		"status":         payment.StatusCompleted,
		"order":          o,
	})
}

func (s *Server) paymentHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderID")
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	history, err := s.ledger.GetPaymentHistory(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(history))
}

func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	rec, err := s.ledger.Record(r.Context(), r.PathValue("transactionID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) refundPayment(w http.ResponseWriter, r *http.Request) {
	txID := r.PathValue("transactionID")
	refunded, err := s.ledger.RefundPayment(r.Context(), txID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transaction_id": txID, "refunded": refunded})
}

func (s *Server) userFromPath(r *http.Request) (*model.User, error) {
	id, err := pathID(r, "userID")
	if err != nil {
		return nil, err
	}
	return s.findUser(id)
}

func (s *Server) findUser(id int64) (*model.User, error) {
	if id <= 0 {
		return nil, fmt.Errorf("user id is required: %w", apperr.ErrValidation)
	}
	user, ok, err := storage.Get[*model.User](s.store, model.KindUser, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, apperr.ErrNotFound)
	}
	return user, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q: %w", name, r.PathValue(name), apperr.ErrValidation)
	}
	return id, nil
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrNotConnected):
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
	default:
		s.logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
