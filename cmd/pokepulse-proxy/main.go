// Command pokepulse-proxy serves the card pricing API: a single
// action-dispatched endpoint backed by the Redis cache, the metered
// upstream client and the SQLite collection store.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/pokepulse/pokepulse-backend/pkg/cache"
	"github.com/pokepulse/pokepulse-backend/pkg/client"
	"github.com/pokepulse/pokepulse-backend/pkg/collection"
	"github.com/pokepulse/pokepulse-backend/pkg/logging"
	"github.com/pokepulse/pokepulse-backend/pkg/query"
	"github.com/pokepulse/pokepulse-backend/pkg/ratelimit"
)

// Config is the process configuration, loaded from the environment.
type Config struct {
	APIKey          string `env:"POKEMON_API_KEY"`
	UpstreamBaseURL string `env:"UPSTREAM_BASE_URL" envDefault:"https://www.pokemonpricetracker.com/api/v2"`
	RedisURL        string `env:"REDIS_URL" envDefault:"localhost:6379"`
	DBPath          string `env:"POKEPULSE_DB" envDefault:"pokepulse.db"`
	Port            string `env:"PORT" envDefault:"8080"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty       bool   `env:"LOG_PRETTY" envDefault:"false"`
}

// Supported actions of the /api endpoint. Dispatch is a closed set;
// anything else is a caller error.
const (
	actionPopular   = "popular"
	actionSets      = "sets"
	actionCards     = "cards"
	actionCard      = "card"
	actionWatchlist = "watchlist"
	actionPortfolio = "portfolio"
	actionStatus    = "status"
)

var supportedActions = []string{
	actionPopular, actionSets, actionCards, actionCard,
	actionWatchlist, actionPortfolio, actionStatus,
}

func main() {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse environment: %v\n", err)
		os.Exit(1)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.LogLevel(cfg.LogLevel)
	logCfg.Pretty = cfg.LogPretty
	logging.Setup(logCfg)

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Str("redis", cfg.RedisURL).Msg("Failed to connect to Redis")
	}
	log.Info().Str("redis", cfg.RedisURL).Msg("Connected to Redis")

	store, err := collection.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open collection store")
	}
	defer store.Close()

	tracker := ratelimit.NewTracker(redisClient, logging.NewLogger("credit-tracker"))

	clientCfg := client.DefaultConfig(func() string { return cfg.APIKey })
	clientCfg.BaseURL = cfg.UpstreamBaseURL
	clientCfg.Tracker = tracker
	upstream, err := client.New(clientCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create upstream client")
	}

	cacheManager := cache.NewManager(redisClient)
	queries := query.NewService(cacheManager, upstream)

	if cfg.APIKey == "" {
		log.Warn().Msg("POKEMON_API_KEY not set; upstream queries will fail until configured")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api", apiHandler(queries, store, cacheManager, tracker, cfg))
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(redisClient, store))
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.Port
	log.Info().Str("addr", addr).Msg("Starting pricing proxy")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// readyHandler reports readiness of both backing stores.
func readyHandler(redisClient *redis.Client, store *collection.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			http.Error(w, fmt.Sprintf("redis unavailable: %v", err), http.StatusServiceUnavailable)
			return
		}
		if _, _, err := store.Counts(ctx); err != nil {
			http.Error(w, fmt.Sprintf("collection store unavailable: %v", err), http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	}
}

// apiHandler dispatches on the action query parameter.
func apiHandler(
	queries *query.Service,
	store *collection.Store,
	cacheManager *cache.Manager,
	tracker *ratelimit.Tracker,
	cfg Config,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		params := r.URL.Query()
		action := params.Get("action")
		params.Del("action")

		switch action {
		case actionPopular:
			payload, status := queries.Popular(ctx)
			writeJSON(w, status, payload)
		case actionSets:
			payload, status := queries.Sets(ctx, params)
			writeJSON(w, status, payload)
		case actionCards:
			payload, status := queries.Cards(ctx, params)
			writeJSON(w, status, payload)
		case actionCard:
			payload, status := queries.CardDetail(ctx, params)
			writeJSON(w, status, payload)
		case actionWatchlist:
			watchlistHandler(ctx, w, r, store, params)
		case actionPortfolio:
			portfolioHandler(ctx, w, r, store, params)
		case actionStatus:
			statusHandler(ctx, w, store, cacheManager, tracker, cfg)
		default:
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":     fmt.Sprintf("unknown action %q", action),
				"supported": supportedActions,
			})
		}
	}
}

// watchlistRequest is the POST body for watchlist toggles.
type watchlistRequest struct {
	CardID   string `json:"card_id"`
	CardName string `json:"card_name"`
	SetName  string `json:"set_name"`
	ImageURL string `json:"image_url"`
}

func watchlistHandler(ctx context.Context, w http.ResponseWriter, r *http.Request, store *collection.Store, params url.Values) {
	switch r.Method {
	case http.MethodGet:
		cards, err := store.Watchlist(ctx)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": cards, "count": len(cards)})

	case http.MethodPost:
		var req watchlistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
			return
		}
		added, err := store.ToggleWatchlist(ctx, collection.WatchlistCard{
			CardID:   req.CardID,
			CardName: req.CardName,
			SetName:  req.SetName,
			ImageURL: req.ImageURL,
		})
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"card_id": req.CardID, "watching": added})

	case http.MethodDelete:
		// card_id comes from the query string or, failing that, the body.
		cardID := params.Get("card_id")
		if cardID == "" {
			var req watchlistRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
				cardID = req.CardID
			}
		}
		if err := store.RemoveWatchlist(ctx, cardID); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})

	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	}
}

// portfolioRequest is the POST/PUT body for portfolio changes.
type portfolioRequest struct {
	ID            int64    `json:"id"`
	CardID        string   `json:"card_id"`
	CardName      string   `json:"card_name"`
	SetName       string   `json:"set_name"`
	ImageURL      string   `json:"image_url"`
	Variant       *string  `json:"variant"`
	Condition     *string  `json:"condition"`
	Quantity      *int     `json:"quantity"`
	PurchasePrice *float64 `json:"purchase_price"`
	PurchaseDate  *string  `json:"purchase_date"`
	Notes         *string  `json:"notes"`
}

func portfolioHandler(ctx context.Context, w http.ResponseWriter, r *http.Request, store *collection.Store, params url.Values) {
	switch r.Method {
	case http.MethodGet:
		items, err := store.Portfolio(ctx)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": items, "count": len(items)})

	case http.MethodPost:
		var req portfolioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
			return
		}
		item := collection.PortfolioItem{
			CardID:        req.CardID,
			CardName:      req.CardName,
			SetName:       req.SetName,
			ImageURL:      req.ImageURL,
			PurchasePrice: req.PurchasePrice,
		}
		if req.Variant != nil {
			item.Variant = *req.Variant
		}
		if req.Condition != nil {
			item.Condition = *req.Condition
		}
		if req.Quantity != nil {
			item.Quantity = *req.Quantity
		}
		if req.PurchaseDate != nil {
			item.PurchaseDate = *req.PurchaseDate
		}
		if req.Notes != nil {
			item.Notes = *req.Notes
		}
		id, err := store.AddPortfolioItem(ctx, item)
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": id, "added": true})

	case http.MethodPut, http.MethodPatch:
		var req portfolioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
			return
		}
		err := store.UpdatePortfolioItem(ctx, req.ID, collection.PortfolioUpdate{
			Quantity:      req.Quantity,
			PurchasePrice: req.PurchasePrice,
			PurchaseDate:  req.PurchaseDate,
			Notes:         req.Notes,
			Variant:       req.Variant,
			Condition:     req.Condition,
		})
		if err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": req.ID, "updated": true})

	case http.MethodDelete:
		// id comes from the query string or, failing that, the body.
		var id int64
		if raw := params.Get("id"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]any{"error": "id required"})
				return
			}
			id = parsed
		} else {
			var req portfolioRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
				id = req.ID
			}
		}
		if err := store.DeletePortfolioItem(ctx, id); err != nil {
			writeStoreError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})

	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	}
}

// statusHandler reports service diagnostics: configuration presence,
// cache occupancy, credit state and collection sizes.
func statusHandler(
	ctx context.Context,
	w http.ResponseWriter,
	store *collection.Store,
	cacheManager *cache.Manager,
	tracker *ratelimit.Tracker,
	cfg Config,
) {
	payload := map[string]any{
		"status":             "operational",
		"api_key_configured": cfg.APIKey != "",
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
	}

	if stats, err := cacheManager.Stats(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache stats unavailable for status")
		payload["cache"] = map[string]any{"error": "unavailable"}
	} else {
		payload["cache"] = stats
	}

	if watchlist, portfolio, err := store.Counts(ctx); err != nil {
		log.Warn().Err(err).Msg("Collection counts unavailable for status")
		payload["collection"] = map[string]any{"error": "unavailable"}
	} else {
		payload["collection"] = map[string]any{"watchlist": watchlist, "portfolio": portfolio}
	}

	state, err := tracker.State(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Credit state unavailable for status")
	}
	payload["credits"] = state

	writeJSON(w, http.StatusOK, payload)
}

// writeStoreError maps collection store errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case isCallerError(err):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	case err == collection.ErrNotFound:
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
	default:
		log.Error().Err(err).Msg("Collection store operation failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "storage failure"})
	}
}

func isCallerError(err error) bool {
	return err == collection.ErrCardIDRequired || err == collection.ErrItemIDRequired
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
