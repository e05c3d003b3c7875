package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"github.com/username/balanco/backend/src/config"
	"github.com/username/balanco/backend/src/database"
	"github.com/username/balanco/backend/src/handlers"
	"github.com/username/balanco/backend/src/logger"
	"github.com/username/balanco/backend/src/security"
	"github.com/username/balanco/backend/src/services"
	"golang.org/x/time/rate"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin == config.Cfg.FrontendBaseURL {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Balanco backend server starting...")

	if config.Cfg.JWTSecret == "" || len(config.Cfg.JWTSecret) < 32 {
		logger.L.Error("JWT_SECRET configuration invalid.")
		os.Exit(1)
	}

	logger.L.Info("Initializing database...", "path", config.Cfg.DatabasePath)
	database.InitDB(config.Cfg.DatabasePath)
	database.RunMigrations(config.Cfg.DatabasePath, config.Cfg.MigrationsPath)

	historyCache := cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval)

	authService := security.NewAuthService(config.Cfg.JWTSecret)
	reconciliationService := services.NewReconciliationService(database.DB, historyCache)

	userHandler := handlers.NewUserHandler(authService)
	accountHandler := handlers.NewAccountHandler()
	txHandler := handlers.NewTransactionHandler()
	reconciliationHandler := handlers.NewReconciliationHandler(reconciliationService)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Balanco Backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", userHandler.RegisterUserHandler)
			r.Post("/auth/login", userHandler.LoginUserHandler)
			r.Post("/auth/refresh", userHandler.RefreshTokenHandler)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(userHandler.AuthMiddleware)

			r.Post("/auth/logout", userHandler.LogoutUserHandler)

			r.Get("/accounts", accountHandler.HandleListAccounts)
			r.Post("/accounts", accountHandler.HandleCreateAccount)
			r.Get("/accounts/{accountID}", accountHandler.HandleGetAccount)
			r.Get("/accounts/{accountID}/transactions", txHandler.HandleListAccountTransactions)
			r.Get("/accounts/{accountID}/reconciliations", reconciliationHandler.HandleGetReconciliationHistory)

			r.Post("/transactions", txHandler.HandleCreateTransaction)
			r.Delete("/transactions/{transactionID}", txHandler.HandleDeleteTransaction)

			r.Post("/reconciliations", reconciliationHandler.HandleStartReconciliation)
			r.Get("/reconciliations/{reconciliationID}", reconciliationHandler.HandleGetReconciliation)
			r.Post("/reconciliations/{reconciliationID}/statement", reconciliationHandler.HandleUploadStatement)
			r.Post("/reconciliations/{reconciliationID}/match", reconciliationHandler.HandleMatchTransaction)
			r.Post("/reconciliations/{reconciliationID}/unmatch", reconciliationHandler.HandleUnmatchTransaction)
			r.Post("/reconciliations/{reconciliationID}/adjustments", reconciliationHandler.HandleAdjustBalance)
			r.Post("/reconciliations/{reconciliationID}/complete", reconciliationHandler.HandleCompleteReconciliation)
			r.Post("/reconciliations/{reconciliationID}/cancel", reconciliationHandler.HandleCancelReconciliation)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
		}
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
