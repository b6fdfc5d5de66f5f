package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/patrickmn/go-cache"
	"github.com/rs/cors"
	"github.com/susu3304/warikanbot/internal/config"
	"github.com/susu3304/warikanbot/internal/logger"
	"github.com/susu3304/warikanbot/internal/warikan"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	guildCacheTTL     = 5 * time.Minute
	guildCacheCleanup = 10 * time.Minute
	discordAPIBase    = "https://discord.com/api"
)

// LedgerIndex finds where ledgers exist. *db.DB satisfies it.
type LedgerIndex interface {
	LedgerGuilds(ctx context.Context) ([]int64, error)
	LedgerChannels(ctx context.Context, guildID int64) ([]string, error)
}

type API struct {
	router      *mux.Router
	warikan     *warikan.Service
	index       LedgerIndex
	config      *config.Config
	oauthConfig *oauth2.Config
	jwtSecret   []byte
	guildCache  *cache.Cache
	discordBase string
	httpClient  *http.Client
}

func New(cfg *config.Config, svc *warikan.Service, index LedgerIndex) *API {
	api := &API{
		router:      mux.NewRouter(),
		warikan:     svc,
		index:       index,
		config:      cfg,
		jwtSecret:   []byte(cfg.JWTSecret),
		guildCache:  cache.New(guildCacheTTL, guildCacheCleanup),
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
	// Auth endpoints
	a.router.HandleFunc("/api/auth/login", a.handleLogin).Methods("GET")
	a.router.HandleFunc("/api/auth/callback", a.handleCallback).Methods("GET")
	a.router.HandleFunc("/api/auth/logout", a.handleLogout).Methods("POST")

	// Public endpoints
	a.router.HandleFunc("/api/settle", a.handlePublicSettle).Methods("POST")

	// Protected endpoints
	protected := a.router.PathPrefix("/api").Subrouter()
	protected.Use(a.authMiddleware)

	protected.HandleFunc("/user/guilds", a.handleUserGuilds).Methods("GET")
	protected.HandleFunc("/guilds/{guild_id}/channels", a.handleListChannels).Methods("GET")

	channel := protected.PathPrefix("/guilds/{guild_id}/channels/{channel_id}").Subrouter()
	channel.Use(a.channelAccessMiddleware)
	channel.HandleFunc("/expenses", a.handleListExpenses).Methods("GET")
	channel.HandleFunc("/balances", a.handleBalances).Methods("GET")
	channel.HandleFunc("/settle", a.handleChannelSettle).Methods("POST")
	channel.HandleFunc("/transfers", a.handleTransfers).Methods("GET")
}

// Handler returns the router wrapped with CORS.
func (a *API) Handler() http.Handler {
	// When AllowedOrigins is "*", AllowCredentials must be false
	corsOptions := cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}
	return cors.New(corsOptions).Handler(a.router)
}

func (a *API) Start() error {
	logger.L.Info("API server listening", zap.String("addr", "http://"+a.config.WebBind))
	return http.ListenAndServe(a.config.WebBind, a.Handler())
}
