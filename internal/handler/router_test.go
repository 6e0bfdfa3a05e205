package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/albumbox/internal/metrics"
	"github.com/hitoshi/albumbox/internal/middleware"
	"github.com/hitoshi/albumbox/internal/model"
)

// memorySessionStore はトークンとIPの組をキーとするインメモリのセッション置き場。
// ルーター経由の結合テストでPostgres実装の代わりに使う。
type memorySessionStore struct {
	sessions map[string]*model.Session // key: token + "|" + ip
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: make(map[string]*model.Session)}
}

func (s *memorySessionStore) put(session *model.Session) {
	s.sessions[session.Token+"|"+session.IPAddress] = session
}

func (s *memorySessionStore) FindByTokenAndIP(ctx context.Context, token, ip string) (*model.Session, error) {
	return s.sessions[token+"|"+ip], nil
}

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error {
	return m.err
}

// setupTestRouter は結合テスト用のルーター一式を構成する。
func setupTestRouter(t *testing.T, store *memorySessionStore) http.Handler {
	t.Helper()

	authService := &mockAuthService{
		authenticateFn: func(ctx context.Context, name, password, action, clientIP string) (*model.Session, error) {
			if password != "correct" {
				return nil, model.NewInvalidPasswordError()
			}
			session := &model.Session{
				Token:     "tok-" + name,
				AlbumID:   "album-1",
				IPAddress: clientIP,
				ExpiresAt: time.Now().Add(24 * time.Hour),
			}
			store.put(session)
			return session, nil
		},
	}

	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:     rate.Limit(1000),
		GeneralBurst:    1000,
		UploadRate:      rate.Limit(1000),
		UploadBurst:     1000,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)

	reg := prometheus.NewRegistry()

	return NewRouter(&RouterDeps{
		SessionFinder:     store,
		CORSAllowedOrigin: "https://albumbox.example",
		RateLimiter:       rl,
		AuthService:       authService,
		AuthConfig:        AuthHandlerConfig{SessionMaxAge: 86400},
		AlbumFinder: &mockAlbumFinder{
			findByIDFn: func(ctx context.Context, id string) (*model.Album, error) {
				return &model.Album{ID: id, Name: "vacation2024"}, nil
			},
		},
		PhotoService:    &mockPhotoService{},
		PhotoImporter:   &mockImporter{},
		MaxUploadSize:   testMaxUpload,
		Metrics:         metrics.NewCollector(reg),
		MetricsGatherer: reg,
		DB:              &mockPinger{},
	})
}

// Cookieなしでゲート内ルートにアクセスすると401になることを検証
func TestRouter_GatedRoute_NoSession(t *testing.T) {
	router := setupTestRouter(t, newMemorySessionStore())

	for _, tc := range []struct{ method, path string }{
		{"GET", "/api/albums_page"},
		{"GET", "/api/fetch_photos?album_id=album-1"},
		{"POST", "/api/add_photo"},
		{"POST", "/api/import_photo"},
		{"DELETE", "/api/delete_photo"},
		{"POST", "/api/photo_viewed"},
	} {
		r := httptest.NewRequest(tc.method, tc.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, r)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want 401", tc.method, tc.path, w.Code)
		}
	}
}

// 認証→Cookie→ゲート内アクセスの一連の流れを検証
func TestRouter_AuthThenAccess(t *testing.T) {
	router := setupTestRouter(t, newMemorySessionStore())

	// 1. 認証してセッションCookieを得る
	authReq := httptest.NewRequest("POST", "/api/auth", strings.NewReader(`{"name":"vacation2024","password":"correct","action":"login"}`))
	authReq.Header.Set("X-Forwarded-For", "203.0.113.7")
	authW := httptest.NewRecorder()
	router.ServeHTTP(authW, authReq)

	if authW.Code != http.StatusOK {
		t.Fatalf("auth status = %d, want 200: %s", authW.Code, authW.Body.String())
	}

	cookie := findCookie(t, authW.Result(), middleware.SessionCookieName)
	if cookie == nil {
		t.Fatal("session cookie should be set")
	}

	// 2. 同じIPからのゲート内アクセスは通る
	listReq := httptest.NewRequest("GET", "/api/fetch_photos?album_id=album-1", nil)
	listReq.Header.Set("X-Forwarded-For", "203.0.113.7")
	listReq.AddCookie(cookie)
	listW := httptest.NewRecorder()
	router.ServeHTTP(listW, listReq)

	if listW.Code != http.StatusOK {
		t.Errorf("fetch_photos status = %d, want 200: %s", listW.Code, listW.Body.String())
	}

	// 3. 別のIPから同じCookieを提示しても401（セッションのIP束縛）
	foreignReq := httptest.NewRequest("GET", "/api/fetch_photos?album_id=album-1", nil)
	foreignReq.Header.Set("X-Forwarded-For", "198.51.100.99")
	foreignReq.AddCookie(cookie)
	foreignW := httptest.NewRecorder()
	router.ServeHTTP(foreignW, foreignReq)

	if foreignW.Code != http.StatusUnauthorized {
		t.Errorf("foreign IP status = %d, want 401", foreignW.Code)
	}
}

// 誤ったパスワードでの認証が401になりCookieが設定されないことを検証
func TestRouter_Auth_WrongPassword(t *testing.T) {
	router := setupTestRouter(t, newMemorySessionStore())

	r := httptest.NewRequest("POST", "/api/auth", strings.NewReader(`{"name":"vacation2024","password":"wrong","action":"login"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if findCookie(t, w.Result(), middleware.SessionCookieName) != nil {
		t.Error("no session cookie should be set on failure")
	}
}

// /healthと/metricsが認証なしでアクセスできることを検証
func TestRouter_PublicRoutes(t *testing.T) {
	router := setupTestRouter(t, newMemorySessionStore())

	healthW := httptest.NewRecorder()
	router.ServeHTTP(healthW, httptest.NewRequest("GET", "/health", nil))
	if healthW.Code != http.StatusOK {
		t.Errorf("/health status = %d, want 200", healthW.Code)
	}

	metricsW := httptest.NewRecorder()
	router.ServeHTTP(metricsW, httptest.NewRequest("GET", "/metrics", nil))
	if metricsW.Code != http.StatusOK {
		t.Errorf("/metrics status = %d, want 200", metricsW.Code)
	}
	if !strings.Contains(metricsW.Body.String(), "albumbox_") {
		t.Error("/metrics should expose albumbox metrics")
	}
}

// DB疎通が失敗した場合に/healthが503になることを検証
func TestRouter_Health_DBDown(t *testing.T) {
	store := newMemorySessionStore()

	reg := prometheus.NewRegistry()
	router := NewRouter(&RouterDeps{
		SessionFinder:   store,
		AuthService:     &mockAuthService{},
		AlbumFinder:     &mockAlbumFinder{},
		PhotoService:    &mockPhotoService{},
		PhotoImporter:   &mockImporter{},
		MaxUploadSize:   testMaxUpload,
		MetricsGatherer: reg,
		DB:              &mockPinger{err: errors.New("connection refused")},
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("/health status = %d, want 503", w.Code)
	}
}

// セキュリティヘッダーが全レスポンスに付与されることを検証
func TestRouter_SecurityHeaders(t *testing.T) {
	router := setupTestRouter(t, newMemorySessionStore())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
}

// OPTIONSプリフライトが204で応答することを検証
func TestRouter_CORSPreflight(t *testing.T) {
	router := setupTestRouter(t, newMemorySessionStore())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/api/fetch_photos", nil))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://albumbox.example" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
