package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/subhoplz/TOKEN-FOR-CANTEEN/docs"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/audit"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/config"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/database"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/handlers"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/ledger"
	mW "github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/middleware"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/models"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/qr"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/reconcile"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/scan"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/services"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/store"
	"github.com/subhoplz/TOKEN-FOR-CANTEEN/internal/token"
)

// @title Canteen Pass API
// @version 1.0
// @description Token-based canteen payments with offline-tolerant reconciliation
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	// Initialize config
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()
	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")
	viper.BindEnv("settlement.currency", "SETTLEMENT_CURRENCY")
	viper.BindEnv("settlement.operator", "SETTLEMENT_OPERATOR")

	viper.SetDefault("jwt.secret_key", "canteen-pass-dev-secret")
	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	cfg := config.LoadCanteenConfig()

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Canteen Pass API"
	docs.SwaggerInfo.Description = "Token-based canteen payments with offline-tolerant reconciliation"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Local storage: Redis when reachable, in-memory otherwise. The account
	// cache must work with neither the database nor Redis available.
	redisClient := database.InitRedis()
	var storage store.Storage
	if redisClient != nil {
		defer redisClient.Close()
		storage = store.NewRedisStorage(redisClient)
	} else {
		log.Println("Redis unavailable, account cache will not survive restarts")
		storage = store.NewMemoryStorage()
	}

	accounts := store.NewAccountStore(storage)
	ctx := context.Background()
	var seed []models.Account
	if cfg.SeedAccounts {
		seed = seedAccounts()
	}
	if err := accounts.Load(ctx, seed); err != nil {
		log.Fatalf("Failed to load accounts: %v", err)
	}

	auditLogger := audit.NewLogger()
	signer := token.New(cfg.SignerScheme, cfg.SignerSecret)
	codec := qr.NewCodec()

	// Remote ledger. An unreachable database means the device starts offline
	// and queues every mutation until connectivity is reported.
	db := database.InitDatabase()
	var remote ledger.RemoteLedger
	if db != nil {
		defer db.Close()
		remote = ledger.NewPostgresLedger(db)
	}

	reconciler := reconcile.NewReconciler(accounts, remote, auditLogger, cfg.ReconcileTimeout)
	reconciler.SetOnline(db != nil)

	runCtx, stopReconciler := context.WithCancel(ctx)
	defer stopReconciler()
	reconciler.Start(runCtx)

	validator := scan.NewValidator(codec, signer, accounts)

	sessionService := services.NewSessionService(accounts, redisClient)
	accountService := services.NewAccountService(accounts, signer, codec, auditLogger)
	syncService := services.NewSyncService(accounts, reconciler)
	settlementService := services.NewSettlementService(accounts)
	scanHandler := handlers.NewScanHandler(validator, auditLogger, cfg)

	// Setup router
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"status": "healthy",
			"online": reconciler.Online(),
		})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/session/login", sessionService.Login)
		r.Post("/session/logout", sessionService.Logout)

		// Protected endpoints
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Get("/session/current", sessionService.Current)

			r.Get("/accounts", accountService.ListAccounts)
			r.Get("/accounts/{id}/balance", accountService.GetBalance)
			r.Get("/accounts/{id}/transactions", accountService.GetTransactions)
			r.Post("/accounts/{id}/spend", accountService.Spend)
			r.Get("/accounts/{id}/habits", accountService.Habits)

			r.Post("/scan/validate", scanHandler.Validate)
			r.Post("/sync/connectivity", syncService.SetConnectivity)
			r.Get("/sync/status", syncService.Status)

			// Vendor-side endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRole(string(models.RoleVendor), string(models.RoleAdmin)))
				r.Post("/scan/serve", scanHandler.Serve)
			})

			// Administrator endpoints
			r.Group(func(r chi.Router) {
				r.Use(mW.RequireRole(string(models.RoleAdmin)))

				r.Post("/accounts", accountService.CreateAccount)
				r.Put("/accounts/{id}", accountService.EditAccount)
				r.Delete("/accounts/{id}", accountService.DeleteAccount)
				r.Post("/accounts/{id}/credit", accountService.Credit)
				r.Get("/transactions", accountService.AllTransactions)

				r.Post("/sync/run", syncService.RunSync)
				r.Get("/settlement/export", settlementService.Export)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}

// seedAccounts mirrors the demo accounts the device app ships with. Balances
// are expressed as an initial credit entry so every balance stays derivable
// from the log.
func seedAccounts() []models.Account {
	now := time.Now().UTC()
	grant := func(amount int64) []models.TransactionEntry {
		return []models.TransactionEntry{{
			ID:          uuid.NewString(),
			Direction:   models.DirectionCredit,
			Amount:      amount,
			Description: "Initial token grant",
			Timestamp:   now,
			SyncState:   models.SyncPending,
		}}
	}
	credential, err := services.HashCredential("password")
	if err != nil {
		log.Fatalf("Failed to hash seed credential: %v", err)
	}

	return []models.Account{
		{
			ID:          "cardholder-" + uuid.NewString(),
			ExternalID:  "E12345",
			DisplayName: "Alex Doe",
			Role:        models.RoleCardholder,
			Credential:  credential,
			Log:         grant(100),
			LastUpdated: now,
		},
		{
			ID:          "cardholder-" + uuid.NewString(),
			ExternalID:  "E67890",
			DisplayName: "Jane Doe",
			Role:        models.RoleCardholder,
			Credential:  credential,
			Log:         grant(250),
			LastUpdated: now,
		},
		{
			ID:          "admin-" + uuid.NewString(),
			ExternalID:  "A00001",
			DisplayName: "Main Admin",
			Role:        models.RoleAdmin,
			LastUpdated: now,
		},
		{
			ID:          "vendor-" + uuid.NewString(),
			ExternalID:  "A00002",
			DisplayName: "Canteen Vendor",
			Role:        models.RoleVendor,
			LastUpdated: now,
		},
	}
}
