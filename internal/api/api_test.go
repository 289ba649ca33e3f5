package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pregnancy-guide-go/internal/cache"
	"pregnancy-guide-go/internal/content"
	"pregnancy-guide-go/internal/core"
	"pregnancy-guide-go/internal/db"
	"pregnancy-guide-go/internal/identity"
	"pregnancy-guide-go/internal/metrics"
	"pregnancy-guide-go/internal/middleware"
	"pregnancy-guide-go/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router   *gin.Engine
	store    *core.Store
	repo     *db.MemoryProfileRepository
	provider *identity.MemoryProvider
}

func newTestServer(t *testing.T, limiter *middleware.RateLimiter) *testServer {
	t.Helper()
	provider := identity.NewMemoryProvider()
	repo := db.NewMemoryProfileRepository()
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	store := core.NewStore(core.Options{
		Session:           identity.NewAdapter(provider, nil),
		Profiles:          repo,
		Metrics:           collector,
		ChecklistDebounce: 20 * time.Millisecond,
		RemoteTimeout:     time.Second,
	})
	require.NoError(t, store.Start())
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	catalog := content.NewCatalog(filepath.Join("..", "..", "data", "articles.json"), cache.NewMemoryCache(), time.Minute, nil)

	router := gin.New()
	SetupRoutes(router, RouteDeps{
		Store:       store,
		Catalog:     catalog,
		AuthLimiter: limiter,
		Gatherer:    reg,
	})
	return &testServer{router: router, store: store, repo: repo, provider: provider}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// signUp registers a@b.com and waits until the profile has loaded.
func (s *testServer) signUp(t *testing.T) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/auth/signup", models.CredentialsRequest{Email: "a@b.com", Password: "secret1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Eventually(t, func() bool {
		return s.store.State().Profile.LoadStatus == core.ProfileLoaded
	}, 2*time.Second, 5*time.Millisecond)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP"}`, w.Body.String())
}

func TestContentRoutes(t *testing.T) {
	s := newTestServer(t, nil)

	all := decode[[]models.Article](t, s.do(t, http.MethodGet, "/api/v1/articles", nil))
	require.NotEmpty(t, all)
	assert.Equal(t, "signs-of-labour", all[0].ID)

	w := s.do(t, http.MethodGet, "/api/v1/articles/week-12-scan", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Your 12 Week Scan", decode[models.Article](t, w).Title)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/articles/nope", nil).Code)

	week12 := decode[[]models.Article](t, s.do(t, http.MethodGet, "/api/v1/weeks/12/articles", nil))
	require.Len(t, week12, 3)
	for _, a := range week12 {
		assert.True(t, a.CoversWeek(12), a.ID)
	}
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/v1/weeks/twelve/articles", nil).Code)
	assert.Empty(t, decode[[]models.Article](t, s.do(t, http.MethodGet, "/api/v1/weeks/50/articles", nil)))

	tags := decode[[]string](t, s.do(t, http.MethodGet, "/api/v1/tags", nil))
	assert.Contains(t, tags, "appointments")
	byTag := decode[[]models.Article](t, s.do(t, http.MethodGet, "/api/v1/tags/appointments/articles", nil))
	assert.Len(t, byTag, 2)
}

func TestProfileRoutesRequireSession(t *testing.T) {
	s := newTestServer(t, nil)
	require.Eventually(t, func() bool {
		return s.store.State().Session.Status == core.AuthAnonymous
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/v1/me", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/v1/me/checklist", models.ChecklistItemRequest{Text: "x"}).Code)
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t, nil)
	s.signUp(t)

	session := decode[core.SessionState](t, s.do(t, http.MethodGet, "/api/v1/session", nil))
	assert.Equal(t, core.AuthAuthenticated, session.Status)
	assert.Equal(t, "a@b.com", session.Email)

	w := s.do(t, http.MethodPost, "/api/v1/auth/signup", models.CredentialsRequest{Email: "a@b.com", Password: "secret1"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "An account with this email already exists.", s.store.State().Session.AuthError)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/auth/signout", nil).Code)
	require.Eventually(t, func() bool {
		return s.store.State().Session.Status == core.AuthAnonymous
	}, time.Second, 5*time.Millisecond)

	w = s.do(t, http.MethodPost, "/api/v1/auth/signin", models.CredentialsRequest{Email: "a@b.com", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Incorrect email or password.", decode[ErrorResponse](t, w).Error)

	w = s.do(t, http.MethodPost, "/api/v1/auth/signin", models.CredentialsRequest{Email: "a@b.com", Password: "secret1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, s.store.State().Session.AuthError)

	w = s.do(t, http.MethodPost, "/api/v1/auth/signin", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResetPasswordIsAmbiguous(t *testing.T) {
	s := newTestServer(t, nil)
	s.signUp(t)

	known := s.do(t, http.MethodPost, "/api/v1/auth/reset-password", models.PasswordResetRequest{Email: "a@b.com"})
	unknown := s.do(t, http.MethodPost, "/api/v1/auth/reset-password", models.PasswordResetRequest{Email: "nobody@b.com"})

	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, known.Body.String(), unknown.Body.String())
	assert.Equal(t, []string{"a@b.com"}, s.provider.ResetRequests())
}

func TestFavorites(t *testing.T) {
	s := newTestServer(t, nil)
	s.signUp(t)

	w := s.do(t, http.MethodPost, "/api/v1/me/favorites/anatomy-scan/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	toggle := decode[FavoriteToggleResponse](t, w)
	assert.True(t, toggle.Favorite)
	assert.Equal(t, []string{"anatomy-scan"}, toggle.FavoriteArticleIDs)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/api/v1/me/favorites/week-12-scan/toggle", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/v1/me/favorites/unknown/toggle", nil).Code)

	favorites := decode[[]models.Article](t, s.do(t, http.MethodGet, "/api/v1/me/favorites", nil))
	require.Len(t, favorites, 2)
	// Catalog order, newest first.
	assert.Equal(t, "anatomy-scan", favorites[0].ID)
	assert.Equal(t, "week-12-scan", favorites[1].ID)

	require.Eventually(t, func() bool {
		doc, err := s.repo.Fetch(context.Background(), s.store.State().Session.UserID)
		return err == nil && len(doc.FavoriteArticleIDs) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestChecklist(t *testing.T) {
	s := newTestServer(t, nil)
	s.signUp(t)

	w := s.do(t, http.MethodPost, "/api/v1/me/checklist", models.ChecklistItemRequest{Text: "Pack hospital bag"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode[models.ChecklistItem](t, w)
	assert.NotEmpty(t, item.ID)

	w = s.do(t, http.MethodPatch, "/api/v1/me/checklist/"+item.ID, models.ChecklistItemRequest{Text: "Pack the bag"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Pack the bag", decode[models.ChecklistItem](t, w).Text)

	w = s.do(t, http.MethodPost, "/api/v1/me/checklist/"+item.ID+"/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[models.ChecklistItem](t, w).Completed)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/v1/me/checklist/missing/toggle", nil).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/v1/me/checklist", models.ChecklistItemRequest{}).Code)

	userID := s.store.State().Session.UserID
	require.Eventually(t, func() bool {
		doc, err := s.repo.Fetch(context.Background(), userID)
		return err == nil && len(doc.ChecklistItems) == 1 && doc.ChecklistItems[0].Completed
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, "/api/v1/me/checklist/"+item.ID, nil).Code)
	assert.Empty(t, s.store.State().Profile.Checklist)
}

func TestDueDateAndWeek(t *testing.T) {
	s := newTestServer(t, nil)
	s.signUp(t)

	week := decode[WeekResponse](t, s.do(t, http.MethodGet, "/api/v1/me/week", nil))
	assert.Nil(t, week.Week)
	assert.Empty(t, week.Articles)

	due := time.Now().UTC().AddDate(0, 0, 140).Format(dueDateLayout)
	w := s.do(t, http.MethodPut, "/api/v1/me/due-date", models.DueDateRequest{DueDate: &due})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	week = decode[WeekResponse](t, s.do(t, http.MethodGet, "/api/v1/me/week", nil))
	require.NotNil(t, week.Week)
	assert.Equal(t, 21, *week.Week)
	assert.Len(t, week.Articles, 3)

	bad := "01/03/2027"
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/api/v1/me/due-date", models.DueDateRequest{DueDate: &bad}).Code)
	tooFar := time.Now().UTC().AddDate(2, 0, 0).Format(dueDateLayout)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPut, "/api/v1/me/due-date", models.DueDateRequest{DueDate: &tooFar}).Code)

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPut, "/api/v1/me/due-date", models.DueDateRequest{}).Code)
	assert.Nil(t, s.store.State().Profile.DueDate)
}

func TestRefresh(t *testing.T) {
	s := newTestServer(t, nil)
	s.signUp(t)

	w := s.do(t, http.MethodPost, "/api/v1/me/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode[core.State](t, w)
	assert.Equal(t, core.ProfileLoaded, state.Profile.LoadStatus)
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t, middleware.NewRateLimiter(0.001, 2, time.Minute, nil))

	body := models.CredentialsRequest{Email: "x@y.com", Password: "secret1"}
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/v1/auth/signin", body).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPost, "/api/v1/auth/signin", body).Code)
	assert.Equal(t, http.StatusTooManyRequests, s.do(t, http.MethodPost, "/api/v1/auth/signin", body).Code)

	// Content routes are not limited.
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/api/v1/articles", nil).Code)
}

func TestMetricsRoute(t *testing.T) {
	s := newTestServer(t, nil)
	s.signUp(t)

	w := s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `pregnancy_guide_auth_actions_total{action="sign_up",outcome="success"} 1`)
	assert.Contains(t, w.Body.String(), "pregnancy_guide_profile_fetches_total")
}
