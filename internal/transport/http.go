package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vasiliy-maslov/ecommerce-core/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-core/internal/checkout"
	"github.com/vasiliy-maslov/ecommerce-core/internal/handler"
	"github.com/vasiliy-maslov/ecommerce-core/internal/order"
	"github.com/vasiliy-maslov/ecommerce-core/internal/payment"
	"github.com/vasiliy-maslov/ecommerce-core/internal/review"
	"github.com/vasiliy-maslov/ecommerce-core/internal/user"
)

// NewRouter собирает все слои поверх пула соединений и платёжного шлюза.
func NewRouter(dbPool *pgxpool.Pool, gateway payment.Gateway, gatewayTimeout time.Duration) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	userRepo := user.NewRepository(dbPool)
	userSvc := user.NewService(userRepo)

	catalogRepo := catalog.NewRepository(dbPool)
	catalogSvc := catalog.NewService(catalogRepo)

	orderRepo := order.NewRepository(dbPool)
	orderSvc := order.NewService(orderRepo, userRepo)

	paymentRepo := payment.NewRepository(dbPool)
	paymentSvc := payment.NewService(paymentRepo, orderSvc, gateway)

	reviewRepo := review.NewRepository(dbPool)
	reviewSvc := review.NewService(reviewRepo, userRepo, catalogRepo)

	coordinator := checkout.NewCoordinator(catalogSvc, orderSvc, paymentSvc, gatewayTimeout)

	handler.NewUserHandler(userSvc).RegisterRoutes(r)
	handler.NewCatalogHandler(catalogSvc).RegisterRoutes(r)
	handler.NewCheckoutHandler(coordinator, orderSvc, paymentSvc).RegisterRoutes(r)
	handler.NewReviewHandler(reviewSvc).RegisterRoutes(r)

	return r
}
