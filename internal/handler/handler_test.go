package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/aurashift/internal/auth"
	"github.com/sakif/aurashift/internal/repository/sqlite"
	"github.com/sakif/aurashift/internal/service"
)

// apiResponse mirrors envelope with the payload left raw.
type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Field   string          `json:"field"`
}

type fakeGitHub struct {
	user *auth.GitHubUser
	err  error
}

func (f *fakeGitHub) AuthURL(state string) string {
	return "https://github.com/login/oauth/authorize?state=" + state
}

func (f *fakeGitHub) Exchange(_ context.Context, code string) (*auth.GitHubUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

type testEnv struct {
	router http.Handler
	github *fakeGitHub
}

// newTestEnv wires the real services over an in-memory sqlite database.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)
	passwords, err := auth.NewPasswordServiceWithCost(4)
	require.NoError(t, err)

	users, activities := db.Users(), db.Activities()
	progress := service.NewProgressService(activities, users, logger)
	gh := &fakeGitHub{}

	authH := NewAuthHandler(service.NewAuthService(users, tokens, passwords, logger), gh, time.Hour, false, logger)
	activityH := NewActivityHandler(service.NewActivityService(activities, users, progress, logger), logger)
	progressH := NewProgressHandler(progress, logger)
	onboardingH := NewOnboardingHandler(service.NewOnboardingService(users, progress, logger), logger)

	r := chi.NewRouter()
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)
	r.Get("/api/health", NewHealthHandler("test").HandleHealth)
	r.Post("/api/auth/register", authH.HandleRegister)
	r.Post("/api/auth/login", authH.HandleLogin)
	r.Post("/api/auth/logout", authH.HandleLogout)
	r.Get("/api/auth/github/login", authH.HandleGitHubLogin)
	r.Get("/api/auth/github/callback", authH.HandleGitHubCallback)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))
		r.Get("/api/auth/profile", authH.HandleProfile)
		r.Get("/api/auth/verify", authH.HandleVerify)
		r.Post("/api/onboarding/complete", onboardingH.HandleComplete)
		r.Put("/api/onboarding/update", onboardingH.HandleUpdate)
		r.Get("/api/onboarding/status", onboardingH.HandleStatus)
		r.Mount("/api/activities", activityH.Routes())
		r.Get("/api/dashboard/stats", progressH.HandleDashboard)
		r.Get("/api/chart/data", progressH.HandleChart)
	})

	return &testEnv{router: r, github: gh}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), "body: %s", rec.Body.String())
	return resp
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	resp := decode(t, rec)
	require.True(t, resp.Success, "body: %s", rec.Body.String())
	require.NoError(t, json.Unmarshal(resp.Data, dst))
}

// register creates an account and returns its token.
func (e *testEnv) register(t *testing.T, email string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"displayName":     "Test User",
		"email":           email,
		"password":        "secret1",
		"confirmPassword": "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var data struct {
		Token string `json:"token"`
	}
	decodeData(t, rec, &data)
	return data.Token
}

var onboardingBody = map[string]any{
	"yearsSmoked":      3,
	"cigarettesPerDay": 20,
	"costPerPack":      10,
	"motivations":      []string{"Save Money"},
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/health", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "test", body.Environment)
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/nope", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, "Route not found", resp.Error)
}

func TestRegisterLoginProfile(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "ada@example.com")
	require.NotEmpty(t, token)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ADA@example.com", "password": "secret1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"ada@example.com"`)
	assert.NotContains(t, rec.Body.String(), "$2a$")
	assert.NotContains(t, rec.Body.String(), "passwordHash")

	rec = env.do(t, http.MethodGet, "/api/auth/verify", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var verify struct {
		Valid bool `json:"valid"`
	}
	decodeData(t, rec, &verify)
	assert.True(t, verify.Valid)
}

func TestRegister_Errors(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "taken@example.com")

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name: "duplicate email",
			body: map[string]string{
				"displayName": "Again", "email": "taken@example.com",
				"password": "secret1", "confirmPassword": "secret1",
			},
			wantStatus: http.StatusConflict,
			wantCode:   "conflict",
		},
		{
			name: "unknown field",
			body: map[string]string{
				"displayName": "X", "email": "x@example.com",
				"password": "secret1", "confirmPassword": "secret1", "role": "admin",
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation_error",
		},
		{
			name:       "malformed JSON",
			body:       `{"displayName":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation_error",
		},
		{
			name:       "empty body",
			body:       "",
			wantStatus: http.StatusBadRequest,
			wantCode:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/auth/register", "", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			resp := decode(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "ada@example.com")

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "ada@example.com", "password": "nope-nope",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid email or password", decode(t, rec).Error)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/dashboard/stats", "/api/chart/data?timeRange=4d", "/api/activities", "/api/onboarding/status"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)

		rec = env.do(t, http.MethodGet, path, "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

type activityResult struct {
	Activity struct {
		ID       string         `json:"id"`
		Type     string         `json:"type"`
		Points   int            `json:"points"`
		Metadata map[string]any `json:"metadata"`
	} `json:"activity"`
	NewAuraScore int `json:"newAuraScore"`
}

func TestActivityLifecycle(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "ada@example.com")

	// Client-supplied points are ignored.
	rec := env.do(t, http.MethodPost, "/api/activities", token, map[string]any{
		"type":     "gym_workout",
		"points":   100,
		"metadata": map[string]any{"intensity": "high", "duration": 45},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created activityResult
	decodeData(t, rec, &created)
	assert.Equal(t, 5, created.Activity.Points)
	assert.Equal(t, 5, created.NewAuraScore)

	rec = env.do(t, http.MethodGet, "/api/activities", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var page service.ActivityPage
	decodeData(t, rec, &page)
	require.Len(t, page.Activities, 1)
	assert.Equal(t, service.Pagination{Page: 1, Limit: 20, Total: 1, Pages: 1}, page.Pagination)

	rec = env.do(t, http.MethodPut, "/api/activities/"+created.Activity.ID, token, map[string]any{
		"type":     "cigarette_consumed",
		"metadata": map[string]any{"note": "stressful day"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated activityResult
	decodeData(t, rec, &updated)
	assert.Equal(t, -10, updated.Activity.Points)
	assert.Equal(t, 0, updated.NewAuraScore)
	assert.Equal(t, "high", updated.Activity.Metadata["intensity"])
	assert.Equal(t, "stressful day", updated.Activity.Metadata["note"])

	rec = env.do(t, http.MethodDelete, "/api/activities/"+created.Activity.ID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted service.DeleteResult
	decodeData(t, rec, &deleted)
	assert.Equal(t, created.Activity.ID, deleted.DeletedActivityID)
	assert.Equal(t, 0, deleted.NewAuraScore)

	rec = env.do(t, http.MethodDelete, "/api/activities/"+created.Activity.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestActivity_Validation(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "ada@example.com")

	rec := env.do(t, http.MethodPost, "/api/activities", token, map[string]any{"type": "vaping"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "type", decode(t, rec).Field)

	rec = env.do(t, http.MethodGet, "/api/activities?page=0", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "page", decode(t, rec).Field)

	rec = env.do(t, http.MethodGet, "/api/activities?type=nap", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/activities?startDate=someday", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActivity_OtherUsersAreInvisible(t *testing.T) {
	env := newTestEnv(t)
	owner := env.register(t, "owner@example.com")
	intruder := env.register(t, "intruder@example.com")

	rec := env.do(t, http.MethodPost, "/api/activities", owner, map[string]any{"type": "skin_care"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created activityResult
	decodeData(t, rec, &created)

	rec = env.do(t, http.MethodPut, "/api/activities/"+created.Activity.ID, intruder, map[string]any{"type": "gym_workout"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodDelete, "/api/activities/"+created.Activity.ID, intruder, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/activities", intruder, nil)
	var page service.ActivityPage
	decodeData(t, rec, &page)
	assert.Empty(t, page.Activities)
}

func TestOnboardingAndDashboard(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "ada@example.com")

	rec := env.do(t, http.MethodGet, "/api/onboarding/status", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"onboardingCompleted":false`)

	rec = env.do(t, http.MethodPost, "/api/onboarding/complete", token, onboardingBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var completed struct {
		User struct {
			OnboardingCompleted bool `json:"onboardingCompleted"`
			SmokingHistory      struct {
				CostPerCigarette float64 `json:"costPerCigarette"`
			} `json:"smokingHistory"`
			CigarettesAvoided int `json:"cigarettesAvoided"`
		} `json:"user"`
	}
	decodeData(t, rec, &completed)
	assert.True(t, completed.User.OnboardingCompleted)
	assert.Equal(t, 0.5, completed.User.SmokingHistory.CostPerCigarette)
	assert.Equal(t, 20, completed.User.CigarettesAvoided)

	rec = env.do(t, http.MethodPost, "/api/onboarding/complete", token, onboardingBody)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/onboarding/update", token, map[string]any{"cigarettesPerDay": 10})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/dashboard/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var dash service.Dashboard
	decodeData(t, rec, &dash)
	assert.Equal(t, 1, dash.Stats.Level)
	assert.Equal(t, 0, dash.Stats.DaysSmokeFree)
	assert.Equal(t, 10, dash.Stats.CigarettesAvoided)
	assert.Equal(t, 5.0, dash.Stats.MoneySaved)
}

func TestOnboarding_BothCosts(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "ada@example.com")

	body := map[string]any{
		"yearsSmoked":      3,
		"cigarettesPerDay": 20,
		"costPerPack":      10,
		"costPerCigarette": 0.5,
		"motivations":      []string{"Save Money"},
	}
	rec := env.do(t, http.MethodPost, "/api/onboarding/complete", token, body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChart(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "ada@example.com")
	rec := env.do(t, http.MethodPost, "/api/activities", token, map[string]any{"type": "healthy_meal"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/chart/data?timeRange=30d", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var chart struct {
		Labels []string `json:"labels"`
		Series struct {
			AuraScore          []int     `json:"aura_score"`
			CigarettesAvoided  []int     `json:"cigarettes_avoided"`
			CigarettesConsumed []int     `json:"cigarettes_consumed"`
			MoneySaved         []float64 `json:"money_saved"`
		} `json:"series"`
	}
	decodeData(t, rec, &chart)
	assert.Equal(t, []string{"Week 1", "Week 2", "Week 3", "Week 4"}, chart.Labels)
	assert.Equal(t, []int{0, 0, 0, 3}, chart.Series.AuraScore)
	// No profile: 20 a day at 5 each over a 7-day period.
	assert.Equal(t, []int{140, 140, 140, 140}, chart.Series.CigarettesAvoided)
	assert.Equal(t, []float64{700, 700, 700, 700}, chart.Series.MoneySaved)

	for _, bad := range []string{"", "?timeRange=7d"} {
		rec = env.do(t, http.MethodGet, "/api/chart/data"+bad, token, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
		assert.Equal(t, "timeRange", decode(t, rec).Field)
	}
}

func TestGitHubFlow(t *testing.T) {
	env := newTestEnv(t)
	env.github.user = &auth.GitHubUser{ID: 99, Login: "octocat", Email: "octo@example.com"}

	rec := env.do(t, http.MethodGet, "/api/auth/github/login", "", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	var state *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == oauthStateCookie {
			state = c
		}
	}
	require.NotNil(t, state)
	assert.True(t, strings.HasSuffix(rec.Header().Get("Location"), "state="+state.Value))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/github/callback?code=abc&state="+state.Value, nil)
	req.AddCookie(state)
	cb := httptest.NewRecorder()
	env.router.ServeHTTP(cb, req)

	require.Equal(t, http.StatusOK, cb.Code, cb.Body.String())
	var res struct {
		Token string `json:"token"`
	}
	decodeData(t, cb, &res)
	require.NotEmpty(t, res.Token)

	var tokenCookie *http.Cookie
	for _, c := range cb.Result().Cookies() {
		if c.Name == auth.TokenCookie {
			tokenCookie = c
		}
	}
	require.NotNil(t, tokenCookie)
	assert.True(t, tokenCookie.HttpOnly)

	// The cookie alone authenticates.
	req = httptest.NewRequest(http.MethodGet, "/api/auth/profile", nil)
	req.AddCookie(tokenCookie)
	profile := httptest.NewRecorder()
	env.router.ServeHTTP(profile, req)
	assert.Equal(t, http.StatusOK, profile.Code)
	assert.Contains(t, profile.Body.String(), `"displayName":"octocat"`)
}

func TestGitHubCallback_Errors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/auth/github/callback?code=abc&state=forged", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.github.err = errors.New("bad verification code")
	req := httptest.NewRequest(http.MethodGet, "/api/auth/github/callback?code=abc&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "s1"})
	cb := httptest.NewRecorder()
	env.router.ServeHTTP(cb, req)
	assert.Equal(t, http.StatusUnauthorized, cb.Code)
}

func TestWriteError_HidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()

	writeError(rec, errors.New("sqlite: disk I/O error at /var/lib/db"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sqlite")
	assert.Equal(t, "An internal error occurred", decode(t, rec).Error)
}
