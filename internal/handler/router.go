package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/albumbox/internal/metrics"
	"github.com/hitoshi/albumbox/internal/middleware"
)

// Pinger はヘルスチェックが必要とするDB疎通確認のインターフェース。
// *sql.DBがそのまま満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// アルバム
	AlbumFinder AlbumFinder

	// 写真
	PhotoService  PhotoServiceInterface
	PhotoImporter PhotoImporterInterface
	MaxUploadSize int64

	// 観測
	Metrics         *metrics.Collector
	MetricsGatherer prometheus.Gatherer

	// ヘルスチェック
	DB Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → (gated) Session → RateLimit(General)
//
// /api/auth、/api/logout、/health、/metricsはセッションゲートの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.Metrics != nil {
		r.Use(middleware.StatusRecorder(deps.Metrics.RecordHTTPStatus))
	}

	var authMetrics AuthMetrics
	var importMetrics ImportMetrics
	if deps.Metrics != nil {
		authMetrics = deps.Metrics
		importMetrics = deps.Metrics
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, authMetrics)
	albumHandler := NewAlbumHandler(deps.AlbumFinder)
	photoHandler := NewPhotoHandler(deps.PhotoService, deps.PhotoImporter, deps.MaxUploadSize, importMetrics)

	// --- 認証不要のルート ---

	r.Post("/api/auth", authHandler.Authenticate)
	r.Post("/api/logout", authHandler.Logout)

	r.Get("/health", newHealthHandler(deps.DB))

	if deps.MetricsGatherer != nil {
		r.Get("/metrics", metrics.Handler(deps.MetricsGatherer).ServeHTTP)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.Get("/api/albums_page", albumHandler.AlbumsPage)
		r.Get("/api/fetch_photos", photoHandler.FetchPhotos)

		// アップロード系は専用レート制限を追加
		if deps.RateLimiter != nil {
			r.With(deps.RateLimiter.UploadMiddleware()).Post("/api/add_photo", photoHandler.AddPhoto)
			r.With(deps.RateLimiter.UploadMiddleware()).Post("/api/import_photo", photoHandler.ImportPhoto)
		} else {
			r.Post("/api/add_photo", photoHandler.AddPhoto)
			r.Post("/api/import_photo", photoHandler.ImportPhoto)
		}

		r.Delete("/api/delete_photo", photoHandler.DeletePhoto)
		r.Post("/api/photo_viewed", photoHandler.PhotoViewed)
	})

	return r
}

// newHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}
