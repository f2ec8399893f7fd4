package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	cfg "github.com/example/envelopes/internal/config"
	"github.com/example/envelopes/internal/password"
	"github.com/example/envelopes/internal/token"
)

type App struct {
	DB          DB
	cfg         *cfg.Config
	log         *slog.Logger
	hasher      *password.Hasher
	tokens      *token.Issuer
	metrics     *metrics
	rateLimiter *RateLimiter
	// dummyHash keeps unknown-email logins as slow as wrong-password ones.
	dummyHash string
}

// NewApp wires the hasher and token issuer from c. c must not be modified afterwards.
func NewApp(c *cfg.Config, db DB, log *slog.Logger) (*App, error) {
	hasher, err := password.New(c.BcryptCost)
	if err != nil {
		return nil, err
	}
	tokens, err := token.NewIssuer([]byte(c.SecretKey), c.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash("not-a-real-password")
	if err != nil {
		return nil, err
	}
	a := &App{
		DB:        db,
		cfg:       c,
		log:       log,
		hasher:    hasher,
		tokens:    tokens,
		metrics:   newMetrics(),
		dummyHash: dummy,
	}
	if c.RateLimitPerMinute > 0 {
		a.rateLimiter = NewRateLimiter(c.RateLimitPerMinute)
	}
	return a, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("write json", "error", err)
	}
}

func (a *App) registerRoutes(r *mux.Router) {
	// Credential endpoints are throttled per client.
	creds := r.NewRoute().Subrouter()
	creds.Use(a.RateLimit)
	creds.HandleFunc("/signup", a.HandleSignup).Methods("POST")
	creds.HandleFunc("/login", a.HandleLogin).Methods("POST")
	creds.HandleFunc("/refresh", a.HandleRefresh).Methods("POST")
	r.HandleFunc("/logout", a.HandleLogout).Methods("POST")

	protected := r.NewRoute().Subrouter()
	protected.Use(a.RequireAccessToken)
	protected.HandleFunc("/envelopes", a.HandleListEnvelopes).Methods("GET")
	protected.HandleFunc("/add-envelope", a.HandleCreateEnvelope).Methods("POST")
}

// Handler builds the full middleware chain and router.
func (a *App) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(a.Metrics)

	// Health check endpoints (no auth required)
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods("GET")
	r.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if p, ok := a.DB.(interface{ ping() bool }); ok && !p.ping() {
			writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
	}).Methods("GET")
	r.Handle("/metrics", a.metrics.handler()).Methods("GET")

	a.registerRoutes(r.PathPrefix("/api/v1").Subrouter())
	// unversioned paths kept for existing clients
	a.registerRoutes(r)

	return SecurityHeaders(RequestID(a.Logging(a.CORS(r))))
}

func openDB(c *cfg.Config, log *slog.Logger) (DB, error) {
	switch c.DBAdapter {
	case "sqlite":
		s, err := NewSQLiteDB(c.SQLiteFile)
		if err != nil {
			return nil, fmt.Errorf("sqlite init: %w", err)
		}
		return s, nil
	case "postgres":
		log.Info("applying database migrations", "dir", c.MigrationsDir)
		if err := ApplyMigrations(c.MigrationsDir, c.PostgresDSN, log); err != nil {
			return nil, fmt.Errorf("migrations: %w", err)
		}
		p, err := NewPostgresDB(c.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres init: %w", err)
		}
		log.Info("connected to PostgreSQL database")
		return p, nil
	case "memory":
		log.Warn("using in-memory database (not recommended for production)")
		return NewMemoryDB(), nil
	}
	return nil, fmt.Errorf("unsupported DB_ADAPTER: %s", c.DBAdapter)
}

func main() {
	c, err := cfg.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := NewLogger(os.Stdout, c.LogLevel)
	slog.SetDefault(log)

	db, err := openDB(c, log)
	if err != nil {
		log.Error("database", "error", err)
		os.Exit(1)
	}

	app, err := NewApp(c, db, log)
	if err != nil {
		log.Error("app init", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Handler:           app.Handler(),
		Addr:              ":" + c.Port,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	go func() {
		log.Info("starting server", "port", c.Port, "db_adapter", c.DBAdapter)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
	if closer, ok := app.DB.(interface{ close() error }); ok {
		_ = closer.close()
	}
	log.Info("server exited properly")
}
