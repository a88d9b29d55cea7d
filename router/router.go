package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/AsterZephyr/voffice/auth"
	"github.com/AsterZephyr/voffice/config"
	"github.com/AsterZephyr/voffice/grid"
	"github.com/AsterZephyr/voffice/store"
	"github.com/AsterZephyr/voffice/ws"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type Health struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
	Reason  string `json:"reason,omitempty"`
}

// UIConfig 是客户端启动时需要的办公室参数
type UIConfig struct {
	Version         string        `json:"version"`
	ProximityRadius int           `json:"proximityRadius"`
	Grid            GridConfig    `json:"grid"`
	Rooms           []string      `json:"rooms"`
	DefaultRoom     string        `json:"defaultRoom"`
	Spawn           grid.Position `json:"spawn"`
}

type GridConfig struct {
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Bounds grid.Bounds `json:"bounds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func Router(conf config.Config, office *ws.Office, verifier auth.Verifier, messages store.Messages, version string) *mux.Router {
	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// https://github.com/gorilla/mux/issues/416
		accessLogger(r, 404, 0, 0)
		w.WriteHeader(http.StatusNotFound)
	})
	router.Use(hlog.NewHandler(log.Logger))
	router.Use(hlog.AccessHandler(accessLogger))
	router.Use(handlers.CORS(
		handlers.AllowedMethods([]string{"GET", "POST"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		handlers.AllowedOriginValidator(originValidator(conf)),
	))

	// 允许页面请求屏幕共享
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Permissions-Policy", "display-capture=*")
			next.ServeHTTP(w, r)
		})
	})

	router.HandleFunc("/stream", office.Upgrade)
	router.Methods("GET").Path("/config").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, &UIConfig{
			Version:         version,
			ProximityRadius: conf.ProximityRadius,
			Grid: GridConfig{
				Width:  conf.GridWidth,
				Height: conf.GridHeight,
				Bounds: conf.Bounds(),
			},
			Rooms:       conf.Rooms,
			DefaultRoom: conf.DefaultRoom,
			Spawn:       conf.Bounds().Clamp(grid.Spawn),
		})
	})
	router.Methods("GET").Path("/health").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i, err := office.Count()
		status := "up"
		code := http.StatusOK
		if err != "" {
			status = "down"
			code = http.StatusInternalServerError
		}
		writeJSON(w, code, Health{
			Status:  status,
			Clients: i,
			Reason:  err,
		})
	})
	router.Methods("GET").Path("/api/messages").Handler(bearerAuth(conversation(messages), verifier))
	if conf.Prometheus {
		log.Info().Msg("Prometheus enabled")
		router.Methods("GET").Path("/metrics").Handler(bearerAuth(promhttp.Handler(), verifier))
	}

	return router
}

// conversation 返回当前用户和 with 之间的私信记录
func conversation(messages store.Messages) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, _ := identityFrom(r.Context())
		with := r.URL.Query().Get("with")
		if with == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing query parameter with"})
			return
		}

		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil || parsed <= 0 {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
				return
			}
			limit = min(parsed, maxHistoryLimit)
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		history, err := messages.Conversation(ctx, identity.UserID, with, limit)
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Str("with", with).Msg("Load conversation")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not load messages"})
			return
		}
		writeJSON(w, http.StatusOK, history)
	}
}

type identityKey struct{}

func identityFrom(ctx context.Context) (auth.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(auth.Identity)
	return identity, ok
}

func bearerAuth(handler http.Handler, verifier auth.Verifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, err := auth.Authenticate(verifier, r)
		if err != nil {
			if !errors.Is(err, auth.ErrMissingToken) {
				hlog.FromRequest(r).Debug().Err(err).Msg("Unauthorized")
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="voffice"`)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
			return
		}

		handler.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, identity)))
	}
}

func originValidator(conf config.Config) func(string) bool {
	return func(origin string) bool {
		return conf.CheckOrigin != nil && conf.CheckOrigin(origin)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func accessLogger(r *http.Request, status, size int, dur time.Duration) {
	log.Debug().
		Str("host", r.Host).
		Int("status", status).
		Int("size", size).
		Str("ip", r.RemoteAddr).
		Str("path", r.URL.Path).
		Str("duration", dur.String()).
		Msg("HTTP")
}
