package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/splitbot/internal/config"
	"github.com/susu3304/splitbot/internal/db"
	"github.com/susu3304/splitbot/internal/settle"
)

type fakeStore struct {
	recorded    []*db.Settlement
	settlements []db.Settlement
	guildIDs    []int64
	lastGuild   int64
	lastLimit   int
}

func (f *fakeStore) RecordSettlement(_ context.Context, s *db.Settlement) error {
	f.recorded = append(f.recorded, s)
	return nil
}

func (f *fakeStore) ListSettlements(_ context.Context, guildID int64, limit int) ([]db.Settlement, error) {
	f.lastGuild, f.lastLimit = guildID, limit
	return f.settlements, nil
}

func (f *fakeStore) GuildIDsWithHistory(context.Context) ([]int64, error) {
	return f.guildIDs, nil
}

func newTestAPI(t *testing.T, store Store) *API {
	t.Helper()
	cfg := &config.Config{
		JWTSecret:      "test-secret",
		CurrencySymbol: "$",
		WebBind:        "127.0.0.1:0",
	}
	solver := settle.NewSolver(settle.Options{Timeout: 5 * time.Second})
	return New(cfg, solver, store, nil)
}

// fakeDiscord serves the two user endpoints the API calls.
func fakeDiscord(t *testing.T, a *API, guilds []DiscordGuild) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/users/@me/guilds", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer discord-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(guilds)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	a.discordBase = srv.URL
}

func do(t *testing.T, a *API, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.Handler().ServeHTTP(w, req)
	return w
}

func sessionToken(t *testing.T, a *API) string {
	t.Helper()
	token, err := a.issueToken(&DiscordUser{ID: "1", Username: "alice"}, "discord-token")
	require.NoError(t, err)
	return token
}

func TestHandleHealth(t *testing.T) {
	w := do(t, newTestAPI(t, nil), "GET", "/api/healthz", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestHandleSettleText(t *testing.T) {
	store := &fakeStore{}
	a := newTestAPI(t, store)

	body := `{"text":"P1 40967\nP2+P3 40967\nP4+P5 40967\nP6 12000\nP7 0"}`
	w := do(t, a, "POST", "/api/settle", body, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got struct {
		Kind        string            `json:"kind"`
		Share       int64             `json:"share"`
		Individuals int               `json:"individuals"`
		Transfers   []settle.Transfer `json:"transfers"`
		Message     string            `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "settled", got.Kind)
	assert.EqualValues(t, 19272, got.Share)
	assert.Equal(t, 7, got.Individuals)
	assert.Len(t, got.Transfers, 4)
	assert.True(t, strings.HasPrefix(got.Message, "**Debts:**"))

	require.Len(t, store.recorded, 1)
	assert.Equal(t, db.SourceAPI, store.recorded[0].Source)
}

func TestHandleSettleEntries(t *testing.T) {
	body := `{"expenses":[{"name":"Alice","amount":100},{"name":"Bob","amount":0}]}`
	w := do(t, newTestAPI(t, nil), "POST", "/api/settle", body, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, []any{map[string]any{"from": "Bob", "to": "Alice", "amount": float64(50)}}, got["transfers"])
	assert.Equal(t, "**Debts:**\n\nBob owes Alice: $50", got["message"])
}

func TestHandleSettleBalanced(t *testing.T) {
	w := do(t, newTestAPI(t, nil), "POST", "/api/settle", `{"text":"Alice 10\nBob 10"}`, "")
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "balanced", got["kind"])
	assert.Equal(t, []any{}, got["transfers"])
	assert.Equal(t, settle.MessageBalanced, got["message"])
}

func TestHandleSettleBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"text":`},
		{"empty", `{}`},
		{"nothing parses", `{"text":"hello\nworld"}`},
		{"negative amount", `{"expenses":[{"name":"Alice","amount":-5}]}`},
		{"empty name", `{"expenses":[{"name":"  ","amount":5}]}`},
		{"both forms", `{"text":"Alice 5","expenses":[{"name":"Bob","amount":5}]}`},
		{"amount too large", `{"expenses":[{"name":"A","amount":9007199254740993},{"name":"B","amount":0}]}`},
		{"text amount too large", `{"text":"A 99999999999999999999\nB 0"}`},
	}
	a := newTestAPI(t, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, a, "POST", "/api/settle", tt.body, "")
			assert.Equal(t, http.StatusBadRequest, w.Code)

			var got map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.NotEmpty(t, got["error"])
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	a := newTestAPI(t, &fakeStore{})

	w := do(t, a, "GET", "/api/guilds/1/settlements", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, a, "GET", "/api/guilds/1/settlements", "", "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest("GET", "/api/guilds/1/settlements", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	other := newTestAPI(t, nil)
	other.jwtSecret = []byte("another-secret")
	w = do(t, a, "GET", "/api/guilds/1/settlements", "", sessionToken(t, other))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandleListSettlements(t *testing.T) {
	store := &fakeStore{settlements: []db.Settlement{{
		GuildID:   123,
		Kind:      "settled",
		Transfers: []settle.Transfer{{From: "Bob", To: "Alice", Amount: 50}},
	}}}
	a := newTestAPI(t, store)
	fakeDiscord(t, a, []DiscordGuild{{ID: "123", Name: "friends"}})
	token := sessionToken(t, a)

	t.Run("member", func(t *testing.T) {
		w := do(t, a, "GET", "/api/guilds/123/settlements?limit=500", "", token)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.EqualValues(t, 123, store.lastGuild)
		assert.Equal(t, maxSettlementLimit, store.lastLimit)

		var got []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		require.Len(t, got, 1)
		assert.Equal(t, "123", got[0]["guild_id"])
	})

	t.Run("not a member", func(t *testing.T) {
		w := do(t, a, "GET", "/api/guilds/999/settlements", "", token)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("bad guild id", func(t *testing.T) {
		w := do(t, a, "GET", "/api/guilds/abc/settlements", "", token)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad limit", func(t *testing.T) {
		w := do(t, a, "GET", "/api/guilds/123/settlements?limit=0", "", token)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHandleListSettlementsWithoutDatabase(t *testing.T) {
	a := newTestAPI(t, nil)
	w := do(t, a, "GET", "/api/guilds/123/settlements", "", sessionToken(t, a))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleUserGuilds(t *testing.T) {
	store := &fakeStore{guildIDs: []int64{2}}
	a := newTestAPI(t, store)
	fakeDiscord(t, a, []DiscordGuild{{ID: "1", Name: "one"}, {ID: "2", Name: "two"}})

	w := do(t, a, "GET", "/api/user/guilds", "", sessionToken(t, a))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `[{"id":"2","name":"two"}]`, w.Body.String())
}

func TestHandleLoginDisabled(t *testing.T) {
	w := do(t, newTestAPI(t, nil), "GET", "/api/auth/login", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHandleLogin(t *testing.T) {
	a := newTestAPI(t, nil)
	a.config.DiscordClientID = "client"
	a.config.DiscordClientSecret = "secret"

	w := do(t, a, "GET", "/api/auth/login", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.NoError(t, a.verifyState(got["state"]))
	assert.Contains(t, got["auth_url"], "client_id=client")
	assert.Contains(t, got["auth_url"], "state="+got["state"])
}

func TestHandleCallbackState(t *testing.T) {
	a := newTestAPI(t, nil)
	a.config.DiscordClientID = "client"
	a.config.DiscordClientSecret = "secret"

	valid, err := a.issueState()
	require.NoError(t, err)

	other := newTestAPI(t, nil)
	other.jwtSecret = []byte("another-secret")
	forged, err := other.issueState()
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &jwt.RegisteredClaims{
		Subject:   stateSubject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString(a.jwtSecret)
	require.NoError(t, err)

	tests := []struct {
		name  string
		query string
	}{
		{"missing state", "?code=abc"},
		{"garbage state", "?code=abc&state=xyz"},
		{"wrong secret", "?code=abc&state=" + forged},
		{"expired", "?code=abc&state=" + expired},
		{"session token as state", "?code=abc&state=" + sessionToken(t, a)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, a, "GET", "/api/auth/callback"+tt.query, "", "")
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "state")
		})
	}

	t.Run("valid state reaches code check", func(t *testing.T) {
		w := do(t, a, "GET", "/api/auth/callback?state="+valid, "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "missing code")
	})
}

func TestStateTokenIsNotASession(t *testing.T) {
	a := newTestAPI(t, &fakeStore{})
	state, err := a.issueState()
	require.NoError(t, err)

	w := do(t, a, "GET", "/api/guilds/1/settlements", "", state)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGenerateRandomString(t *testing.T) {
	a, err := generateRandomString(32)
	require.NoError(t, err)
	b, err := generateRandomString(32)
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestRunShutsDown(t *testing.T) {
	a := newTestAPI(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestCORSOptions(t *testing.T) {
	a := newTestAPI(t, nil)
	assert.Equal(t, []string{"*"}, a.corsOptions().AllowedOrigins)
	assert.False(t, a.corsOptions().AllowCredentials)

	a.config.Environment = "production"
	a.config.DiscordClientID = "client"
	a.config.DiscordClientSecret = "secret"
	a.config.WebUIBaseURL = "https://split.example.com"
	opts := a.corsOptions()
	assert.Equal(t, []string{"https://split.example.com"}, opts.AllowedOrigins)
	assert.True(t, opts.AllowCredentials)
}
