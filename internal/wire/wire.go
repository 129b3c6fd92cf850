// internal/wire/wire.go
package wire

import (
	"net/http"

	"payment-orchestrator/internal/adaptor"
	"payment-orchestrator/internal/audit"
	"payment-orchestrator/internal/data/repository"
	"payment-orchestrator/internal/event"
	"payment-orchestrator/internal/gateway"
	"payment-orchestrator/internal/usecase"
	"payment-orchestrator/internal/worker"
	"payment-orchestrator/pkg/middleware"
	"payment-orchestrator/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App menyimpan semua dependencies
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
	Sweeper *worker.Sweeper
}

// Wiring menginisialisasi semua dependencies. rdb boleh nil: event stream nonaktif.
func Wiring(repo *repository.Repository, rdb *redis.Client, config *utils.Config, logger *zap.Logger) *App {
	// Audit hook harus pertama supaya entry tertulis sebelum consumer lain
	auditLog := audit.NewLog(repo.Audit, logger)
	hooks := []event.Hook{auditLog}
	if rdb != nil {
		hooks = append(hooks, event.NewStreamPublisher(rdb, config.Redis.Stream, config.Redis.MaxLen))
	}
	events := event.NewDispatcher(logger, hooks...)

	httpClient := &http.Client{Timeout: config.Payment.ProviderHTTPTimeout}
	resolver := gateway.NewResolver(gateway.DefaultFactories(httpClient, logger))

	// Initialize services dan handlers
	service := usecase.NewService(repo, resolver, events, auditLog, config, logger)
	handler := adaptor.NewHandler(service, logger)

	// Setup router
	router := setupRouter(handler, config, logger)

	return &App{
		Router:  router,
		Service: service,
		Sweeper: worker.NewSweeper(service.Payment, config.Sweeper.Interval, config.Sweeper.StaleAfter, logger),
	}
}

// setupRouter konfigurasi Chi router
func setupRouter(handler *adaptor.Handler, config *utils.Config, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS())

	// Apply routes
	wirePayment(r, handler.Payment, config, logger)
	wireProvider(r, handler.Provider)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.ResponseSuccess(w, "OK", nil)
	})

	return r
}
