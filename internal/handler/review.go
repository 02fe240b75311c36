package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/vasiliy-maslov/ecommerce-core/internal/review"
)

type CreateReviewRequest struct {
	UserID    int64  `json:"user_id" validate:"required"`
	ProductID int64  `json:"product_id" validate:"required"`
	Rating    int    `json:"rating" validate:"required,min=1,max=5"`
	Comment   string `json:"comment,omitempty"`
}

type UpdateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment,omitempty"`
}

type ReviewHandler struct {
	service  review.Service
	validate *validator.Validate
}

func NewReviewHandler(service review.Service) *ReviewHandler {
	return &ReviewHandler{
		service:  service,
		validate: validator.New(),
	}
}

func (h *ReviewHandler) RegisterRoutes(router chi.Router) {
	router.Post("/reviews", h.handleCreateReview)
	router.Get("/products/{id}/reviews", h.handleGetProductReviews)
	router.Get("/users/{id}/reviews", h.handleGetUserReviews)
	router.Put("/reviews/{id}", h.handleUpdateReview)
	router.Delete("/reviews/{id}", h.handleDeleteReview)
}

func (h *ReviewHandler) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	var req CreateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.service.Create(r.Context(), &review.Review{
		UserID:    req.UserID,
		ProductID: req.ProductID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

func (h *ReviewHandler) handleGetProductReviews(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	reviews, err := h.service.GetByProductID(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, reviews)
}

func (h *ReviewHandler) handleGetUserReviews(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	reviews, err := h.service.GetByUserID(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, reviews)
}

func (h *ReviewHandler) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid review id")
		return
	}

	var req UpdateReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.service.Update(r.Context(), id, req.Rating, req.Comment)
	if err != nil {
		respondWithServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *ReviewHandler) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid review id")
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		respondWithServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
