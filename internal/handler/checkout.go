package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vasiliy-maslov/ecommerce-core/internal/checkout"
	"github.com/vasiliy-maslov/ecommerce-core/internal/order"
	"github.com/vasiliy-maslov/ecommerce-core/internal/payment"
)

type PlaceOrderRequest struct {
	UserID          int64            `json:"user_id" validate:"required"`
	ShippingAddress string           `json:"shipping_address" validate:"required"`
	BillingAddress  string           `json:"billing_address" validate:"required"`
	Items           []PlaceOrderItem `json:"items" validate:"required,min=1,dive"`
	PaymentMethod   string           `json:"payment_method,omitempty"`
}

type PlaceOrderItem struct {
	ProductID int64 `json:"product_id" validate:"required"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

type AuthorizePaymentRequest struct {
	Method string `json:"method" validate:"required"`
}

type TransitionOrderRequest struct {
	Status string `json:"status" validate:"required"`
}

// CheckoutHandler отображает внешние запросы на операции координатора
// и менеджера заказов.
type CheckoutHandler struct {
	coordinator *checkout.Coordinator
	orders      order.Service
	payments    payment.Service
	validate    *validator.Validate
}

func NewCheckoutHandler(coordinator *checkout.Coordinator, orders order.Service, payments payment.Service) *CheckoutHandler {
	return &CheckoutHandler{
		coordinator: coordinator,
		orders:      orders,
		payments:    payments,
		validate:    validator.New(),
	}
}

func (h *CheckoutHandler) RegisterRoutes(router chi.Router) {
	router.Post("/orders", h.handlePlaceOrder)
	router.Get("/orders", h.handleListOrders)
	router.Get("/orders/{id}", h.handleGetOrder)
	router.Get("/users/{id}/orders", h.handleGetUserOrders)
	router.Post("/orders/{id}/status", h.handleTransitionOrder)
	router.Post("/orders/{id}/cancel", h.handleCancelOrder)
	router.Post("/orders/{id}/payment", h.handleAuthorizePayment)
	router.Get("/orders/{id}/payment", h.handleGetPayment)
	router.Post("/orders/{id}/refund", h.handleRefundPayment)
}

func (h *CheckoutHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	var method payment.Method
	if req.PaymentMethod != "" {
		var ok bool
		if method, ok = payment.ParseMethod(req.PaymentMethod); !ok {
			respondWithError(w, http.StatusBadRequest, "unknown payment method: "+req.PaymentMethod)
			return
		}
	}

	items := make([]checkout.PlaceOrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = checkout.PlaceOrderItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	result, err := h.coordinator.PlaceOrder(r.Context(), checkout.PlaceOrderRequest{
		UserID:          req.UserID,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Items:           items,
		PaymentMethod:   method,
	})
	if err != nil {
		// Заказ мог быть создан, а оплата - отклонена: отдаём и результат,
		// и код ошибки, чтобы клиент мог повторить авторизацию.
		if result != nil && result.Order != nil {
			respondWithJSON(w, mapErrorToStatusCode(err), map[string]interface{}{
				"error":  err.Error(),
				"result": result,
			})
			return
		}
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, result)
}

func (h *CheckoutHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseListParams(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders, err := h.orders.List(r.Context(), limit, offset)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *CheckoutHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.orders.GetByID(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, o)
}

func (h *CheckoutHandler) handleGetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	orders, err := h.orders.GetByUserID(r.Context(), userID)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *CheckoutHandler) handleTransitionOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req TransitionOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target, ok := order.ParseStatus(req.Status)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "unknown order status: "+req.Status)
		return
	}

	// Отмена идёт через координатор: она освобождает склад и запускает
	// возврат оплаты.
	if target == order.StatusCancelled {
		if err := h.coordinator.CancelOrder(r.Context(), id); err != nil {
			respondWithServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := h.orders.Transition(r.Context(), id, target); err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CheckoutHandler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if err := h.coordinator.CancelOrder(r.Context(), id); err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CheckoutHandler) handleAuthorizePayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req AuthorizePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	method, ok := payment.ParseMethod(req.Method)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "unknown payment method: "+req.Method)
		return
	}

	p, err := h.coordinator.AuthorizePayment(r.Context(), id, method)
	if err != nil {
		if p != nil {
			respondWithJSON(w, mapErrorToStatusCode(err), map[string]interface{}{
				"error":   err.Error(),
				"payment": p,
			})
			return
		}
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, p)
}

func (h *CheckoutHandler) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	p, err := h.payments.GetByOrderID(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (h *CheckoutHandler) handleRefundPayment(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	p, err := h.coordinator.RefundPayment(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}
