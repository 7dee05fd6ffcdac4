package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mem "partyboard/adapters/memory"
	"partyboard/analytics"
	"partyboard/core"
	"partyboard/engine"
)

func newTestService() *engine.LeaderboardService {
	storage := mem.New()
	bus := engine.NewEventBus(engine.DispatchSync)
	rules := engine.DefaultRuleEngine()
	return engine.NewLeaderboardService(storage, bus, rules)
}

func do(t *testing.T, h http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestAliceScenario(t *testing.T) {
	h := NewMux(newTestService(), nil, Options{PathPrefix: "/api"})

	rec := do(t, h, http.MethodPost, "/api/score", `{"pseudo":"alice","score":100}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true, "new": true}, decode(t, rec))

	rec = do(t, h, http.MethodPost, "/api/score", `{"pseudo":"alice","score":50}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["updated"])
	assert.Equal(t, "existing score is better", body["message"])

	rec = do(t, h, http.MethodPost, "/api/score", `{"pseudo":"alice","score":150}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"success": true, "updated": true, "oldScore": float64(100)}, decode(t, rec))

	rec = do(t, h, http.MethodGet, "/api/leaderboard?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var top []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &top))
	require.Len(t, top, 1)
	assert.Equal(t, "alice", top[0]["pseudo"])
	assert.Equal(t, float64(150), top[0]["score"])
	assert.NotEmpty(t, top[0]["date"])

	rec = do(t, h, http.MethodGet, "/api/player/alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]any{"rank": float64(1), "pseudo": "alice", "score": float64(150)}, decode(t, rec))
}

func TestSubmitScoreValidation(t *testing.T) {
	h := NewMux(newTestService(), nil, Options{PathPrefix: "/api"})

	cases := map[string]string{
		"missing pseudo": `{"score":10}`,
		"blank pseudo":   `{"pseudo":"   ","score":10}`,
		"long pseudo":    `{"pseudo":"` + strings.Repeat("x", 51) + `","score":10}`,
		"missing score":  `{"pseudo":"bob"}`,
		"string score":   `{"pseudo":"bob","score":"10"}`,
		"fractional":     `{"pseudo":"bob","score":1.5}`,
		"negative":       `{"pseudo":"bob","score":-3}`,
		"too large":      `{"pseudo":"bob","score":9007199254740992}`,
		"not json":       `pseudo=bob`,
		"numeric pseudo": `{"pseudo":7,"score":1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/score", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			out := decode(t, rec)
			assert.Equal(t, false, out["success"])
			assert.NotEmpty(t, out["error"])
		})
	}
}

func TestSubmitScoreAcceptsIntegralFloat(t *testing.T) {
	h := NewMux(newTestService(), nil, Options{})
	rec := do(t, h, http.MethodPost, "/score", `{"pseudo":"bob","score":2e2}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/player/bob", "")
	assert.Equal(t, float64(200), decode(t, rec)["score"])
}

func TestLeaderboardLimit(t *testing.T) {
	svc := newTestService()
	for i := 0; i < 15; i++ {
		_, err := svc.SubmitScore(context.Background(), "p"+string(rune('a'+i)), int64(i))
		require.NoError(t, err)
	}
	h := NewMux(svc, nil, Options{PathPrefix: "/api"})

	var list []core.PlayerScore
	rec := do(t, h, http.MethodGet, "/api/leaderboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, core.DefaultLimit)
	assert.Equal(t, int64(14), list[0].BestScore)

	rec = do(t, h, http.MethodGet, "/api/leaderboard?limit=1000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 15)

	for _, bad := range []string{"0", "-2", "abc"} {
		rec = do(t, h, http.MethodGet, "/api/leaderboard?limit="+bad, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", bad)
	}
}

func TestLeaderboardEmptyIsArray(t *testing.T) {
	h := NewMux(newTestService(), nil, Options{})
	rec := do(t, h, http.MethodGet, "/leaderboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestPlayerNotFound(t *testing.T) {
	h := NewMux(newTestService(), nil, Options{PathPrefix: "/api"})
	rec := do(t, h, http.MethodGet, "/api/player/nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["code"])
}

func TestPlayerRankEscapedPseudo(t *testing.T) {
	h := NewMux(newTestService(), nil, Options{PathPrefix: "/api"})

	for i, pseudo := range []string{"AC/DC", "100%", "dj khaled", "a/b%c d"} {
		body, err := json.Marshal(map[string]any{"pseudo": pseudo, "score": 100 - i})
		require.NoError(t, err)
		rec := do(t, h, http.MethodPost, "/api/score", string(body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		rec = do(t, h, http.MethodGet, "/api/player/"+url.PathEscape(pseudo), "")
		require.Equal(t, http.StatusOK, rec.Code, pseudo)
		got := decode(t, rec)
		assert.Equal(t, pseudo, got["pseudo"])
		assert.EqualValues(t, i+1, got["rank"])
	}
}

type downStore struct{}

func (downStore) UpsertBest(context.Context, core.Pseudo, int64) (core.UpsertResult, error) {
	return core.UpsertResult{}, errors.New("connection refused")
}
func (downStore) ListTop(context.Context, int) ([]core.PlayerScore, error) {
	return nil, errors.New("connection refused")
}
func (downStore) GetRank(context.Context, core.Pseudo) (core.RankInfo, error) {
	return core.RankInfo{}, errors.New("connection refused")
}

func TestStorageFailure(t *testing.T) {
	svc := engine.NewLeaderboardService(downStore{}, engine.NewEventBus(engine.DispatchSync), engine.DefaultRuleEngine())
	h := NewMux(svc, nil, Options{PathPrefix: "/api"})

	rec := do(t, h, http.MethodPost, "/api/score", `{"pseudo":"alice","score":1}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, false, out["success"])
	assert.NotEmpty(t, out["error"])

	rec = do(t, h, http.MethodGet, "/api/leaderboard", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode(t, rec)["status"])
}

func TestHealthz(t *testing.T) {
	h := NewMux(newTestService(), nil, Options{PathPrefix: "/api/"})
	rec := do(t, h, http.MethodGet, "/api/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
}

func TestStats(t *testing.T) {
	svc := newTestService()
	metrics := analytics.NewSubmissionMetrics()
	svc.Subscribe(core.EventScoreCreated, func(_ context.Context, e core.Event) { metrics.OnEvent(e) })
	h := NewMux(svc, nil, Options{PathPrefix: "/api", Stats: metrics})

	do(t, h, http.MethodPost, "/api/score", `{"pseudo":"alice","score":10}`)
	rec := do(t, h, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, float64(1), out["created"])
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), out["day"])
}

func TestStatsDisabled(t *testing.T) {
	h := NewMux(newTestService(), nil, Options{})
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/stats", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	h := NewMux(newTestService(), nil, Options{PathPrefix: "/api", AllowCORSOrigin: "*", APIKeys: []string{"secret"}})
	rec := do(t, h, http.MethodOptions, "/api/score", "",
		"Origin", "http://kiosk.local",
		"Access-Control-Request-Method", http.MethodPost,
		"Access-Control-Request-Headers", "Content-Type, X-API-Key",
	)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")

	rec = do(t, h, http.MethodGet, "/api/leaderboard", "", "Origin", "http://kiosk.local", "X-API-Key", "secret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAPIKeyAuth(t *testing.T) {
	h := NewMux(newTestService(), nil, Options{
		PathPrefix:      "/api",
		APIKeys:         []string{"secret"},
		AllowCORSOrigin: "*",
	})

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/leaderboard", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/api/leaderboard", "", "X-API-Key", "nope").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/leaderboard", "", "Authorization", "Bearer secret").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/healthz", "").Code, "probes skip auth")
}

func TestRateLimit(t *testing.T) {
	h := NewMux(newTestService(), nil, Options{
		PathPrefix:       "/api",
		APIKeys:          []string{"k"},
		RateLimitEnabled: true,
		RateLimitRPM:     1,
		RateLimitBurst:   1,
	})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/leaderboard", "", "X-API-Key", "k").Code)
	rec := do(t, h, http.MethodGet, "/api/leaderboard", "", "X-API-Key", "k")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimiterRefills(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newRateLimiter(60, 1)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))
	assert.True(t, l.allow("b"), "buckets are per key")
	now = now.Add(2 * time.Second)
	assert.True(t, l.allow("a"))
	assert.Equal(t, "1", l.retryAfter)
}

func TestUnknownRoute(t *testing.T) {
	h := NewMux(newTestService(), nil, Options{PathPrefix: "/api"})
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/users/alice", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodDelete, "/api/score", "").Code)
}

func TestShareQR(t *testing.T) {
	h := NewMux(newTestService(), nil, Options{PathPrefix: "/api"})

	rec := do(t, h, http.MethodGet, "/api/qr?size=128", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))

	rec = do(t, h, http.MethodGet, "/api/qr?size=9000", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_size", decode(t, rec)["code"])
}

func TestShareQRRequiresKey(t *testing.T) {
	h := NewMux(newTestService(), nil, Options{APIKeys: []string{"k"}, ShareURL: "https://party.example.com/leaderboard"})
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, "/qr", "").Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/qr", "", "X-API-Key", "k").Code)
}
