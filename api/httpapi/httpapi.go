package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/skip2/go-qrcode"

	wsadapter "partyboard/adapters/websocket"
	"partyboard/analytics"
	"partyboard/core"
	"partyboard/engine"
	"partyboard/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// APIKeys, if non-empty, enables static API key auth via Authorization: Bearer or X-API-Key.
	APIKeys []string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// DefaultLimit is used when /leaderboard has no limit parameter.
	DefaultLimit int
	// MaxBodyBytes caps the size of a score submission.
	MaxBodyBytes int64
	// Stats backs GET /stats when set.
	Stats *analytics.SubmissionMetrics
	// ShareURL is the leaderboard address encoded by GET /qr. When empty it is
	// derived from the request host.
	ShareURL string
	Logger   *slog.Logger
}

type api struct {
	svc    *engine.LeaderboardService
	stats  *analytics.SubmissionMetrics
	limit  int
	body   int64
	prefix string
	share  string
	logger *slog.Logger
}

const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

// NewMux builds an http.Handler exposing the leaderboard REST API and WebSocket stream.
// Routes:
//   - POST {prefix}/score
//   - GET  {prefix}/leaderboard?limit=N
//   - GET  {prefix}/player/{pseudo}
//   - GET  {prefix}/stats
//   - GET  {prefix}/qr?size=N
//   - GET  {prefix}/healthz
//   - WS   {prefix}/ws
func NewMux(svc *engine.LeaderboardService, hub *realtime.Hub, opts Options) http.Handler {
	a := &api{
		svc:    svc,
		stats:  opts.Stats,
		limit:  opts.DefaultLimit,
		body:   opts.MaxBodyBytes,
		prefix: trimPrefix(opts.PathPrefix),
		share:  opts.ShareURL,
		logger: opts.Logger,
	}
	if a.limit <= 0 {
		a.limit = core.DefaultLimit
	}
	if a.body <= 0 {
		a.body = 1 << 16
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(a.logger))
	r.Use(middleware.Recoverer)
	if opts.AllowCORSOrigin != "" {
		r.Use(withCORS(opts.AllowCORSOrigin))
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		r.Use(withRateLimit(opts.RateLimitRPM, opts.RateLimitBurst))
	}
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	routes := func(r chi.Router) {
		// probes stay reachable without credentials
		r.Get("/healthz", a.healthCheck)

		r.Group(func(r chi.Router) {
			if len(opts.APIKeys) > 0 {
				r.Use(withAPIKeyAuth(opts.APIKeys))
			}
			r.Post("/score", a.submitScore)
			r.Get("/leaderboard", a.leaderboard)
			r.Get("/player/{pseudo}", a.playerRank)
			r.Get("/qr", a.shareQR)
			if a.stats != nil {
				r.Get("/stats", a.statsSnapshot)
			}
			if hub != nil {
				r.Handle("/ws", wsadapter.Handler(hub, a.logger))
			}
		})
	}
	if a.prefix != "" {
		r.Route(a.prefix, routes)
	} else {
		routes(r)
	}
	return r
}

type scoreRequest struct {
	Pseudo *string `json:"pseudo"`
	Score  any     `json:"score"`
}

func (a *api) submitScore(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, a.body))
	dec.UseNumber()
	var req scoreRequest
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "body must be a JSON object {pseudo, score}", nil)
		return
	}
	if req.Pseudo == nil {
		writeError(w, http.StatusBadRequest, "invalid_pseudo", "pseudo is required", nil)
		return
	}
	score, err := core.ParseScore(req.Score)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := a.svc.SubmitScore(r.Context(), *req.Pseudo, score)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := a.limit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer", nil)
			return
		}
		limit = n
	}
	entries, err := a.svc.GetTop(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *api) playerRank(w http.ResponseWriter, r *http.Request) {
	pseudo, err := pathParam(r, "pseudo")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_pseudo", "pseudo is not a valid path segment", nil)
		return
	}
	info, err := a.svc.GetPlayerRank(r.Context(), pseudo)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// pathParam returns a decoded URL parameter. chi matches on RawPath when the
// request carried escapes such as %2F, leaving the parameter encoded.
func pathParam(r *http.Request, key string) (string, error) {
	v := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return v, nil
	}
	return url.PathUnescape(v)
}

func (a *api) statsSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.stats.Snapshot(time.Now()))
}

// shareQR renders a PNG QR code pointing at the leaderboard so players can
// open it on their phones.
func (a *api) shareQR(w http.ResponseWriter, r *http.Request) {
	size := defaultQRSize
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < minQRSize || n > maxQRSize {
			writeError(w, http.StatusBadRequest, "invalid_size", "size must be an integer between 64 and 1024", nil)
			return
		}
		size = n
	}
	target := a.share
	if target == "" {
		scheme := "http"
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		target = scheme + "://" + r.Host + a.prefix + "/leaderboard"
	}
	png, err := qrcode.Encode(target, qrcode.Medium, size)
	if err != nil {
		a.logger.Error("qr generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "qr_failed", "qr generation failed", nil)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// healthCheck probes storage through the service.
func (a *api) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status": "healthy",
		"checks": map[string]any{"storage": "ok"},
	}
	code := http.StatusOK
	if err := a.svc.Ping(r.Context()); err != nil {
		a.logger.Warn("health check failed", "error", err)
		code = http.StatusServiceUnavailable
		status["status"] = "unhealthy"
		status["checks"].(map[string]any)["storage"] = "failed"
	}
	writeJSON(w, code, status)
}

func trimPrefix(prefix string) string {
	if prefix == "" || prefix == "/" {
		return ""
	}
	if prefix[len(prefix)-1] == '/' {
		prefix = prefix[:len(prefix)-1]
	}
	if prefix[0] != '/' {
		prefix = "/" + prefix
	}
	return prefix
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiError is the body of every non-2xx response. Error mirrors Message for
// clients that only read {success, error}.
type apiError struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	writeJSON(w, status, apiError{Code: code, Message: msg, Error: msg, Details: details})
}

// writeDomainError maps the core error taxonomy onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, "invalid_"+verr.Field, verr.Reason, nil)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "player not found", nil)
	case core.IsStorage(err):
		writeError(w, http.StatusInternalServerError, "storage_unavailable", "leaderboard storage unavailable", nil)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error(), nil)
	}
}
