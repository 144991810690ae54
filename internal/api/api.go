package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/susu3304/splitbot/internal/config"
	"github.com/susu3304/splitbot/internal/db"
	"github.com/susu3304/splitbot/internal/settle"
)

const discordAPIBase = "https://discord.com/api"

// Store is the settlement history the API reads and appends to.
type Store interface {
	RecordSettlement(ctx context.Context, s *db.Settlement) error
	ListSettlements(ctx context.Context, guildID int64, limit int) ([]db.Settlement, error)
	GuildIDsWithHistory(ctx context.Context) ([]int64, error)
}

type API struct {
	router      *mux.Router
	solver      *settle.Solver
	store       Store
	config      *config.Config
	oauthConfig *oauth2.Config
	jwtSecret   []byte
	logger      *zap.Logger

	discordBase string
	httpClient  *http.Client
}

// New builds the HTTP API. store may be nil when no database is configured.
func New(cfg *config.Config, solver *settle.Solver, store Store, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	api := &API{
		router:      mux.NewRouter(),
		solver:      solver,
		store:       store,
		config:      cfg,
		jwtSecret:   []byte(cfg.JWTSecret),
		logger:      logger,
		discordBase: discordAPIBase,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.DiscordClientID,
			ClientSecret: cfg.DiscordClientSecret,
			RedirectURL:  cfg.DiscordRedirectURI,
			Scopes:       []string{"identify", "guilds"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  "https://discord.com/api/oauth2/authorize",
				TokenURL: "https://discord.com/api/oauth2/token",
			},
		},
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.router.Use(a.requestLogger)

	// Public endpoints
	a.router.HandleFunc("/api/healthz", a.handleHealth).Methods("GET")
	a.router.HandleFunc("/api/settle", a.handleSettle).Methods("POST")

	// Auth endpoints
	a.router.HandleFunc("/api/auth/login", a.handleLogin).Methods("GET")
	a.router.HandleFunc("/api/auth/callback", a.handleCallback).Methods("GET")
	a.router.HandleFunc("/api/auth/logout", a.handleLogout).Methods("POST")

	// Protected endpoints
	protected := a.router.PathPrefix("/api").Subrouter()
	protected.Use(a.authMiddleware)

	protected.HandleFunc("/user/guilds", a.handleUserGuilds).Methods("GET")
	protected.HandleFunc("/guilds/{guild_id}/settlements", a.handleListSettlements).Methods("GET")
}

// Handler returns the router wrapped with CORS.
func (a *API) Handler() http.Handler {
	return cors.New(a.corsOptions()).Handler(a.router)
}

// Browsers may call from anywhere unless Discord login is served in
// production, where only the web UI origin is trusted with credentials.
func (a *API) corsOptions() cors.Options {
	opts := cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		// must stay false while AllowedOrigins is "*"
		AllowCredentials: false,
	}
	if a.config.Environment == "production" && a.config.AuthEnabled() {
		opts.AllowedOrigins = []string{a.config.WebUIBaseURL}
		opts.AllowCredentials = true
	}
	return opts
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (a *API) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.config.WebBind,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("API server listening", zap.String("addr", "http://"+a.config.WebBind))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
