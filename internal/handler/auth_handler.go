// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/hitoshi/albumbox/internal/middleware"
	"github.com/hitoshi/albumbox/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Authenticate はアルバム名とパスワードで認証し、セッションを発行する。
	Authenticate(ctx context.Context, name, password, action, clientIP string) (*model.Session, error)
	// Logout はセッションを破棄する。
	Logout(ctx context.Context, token string) error
}

// AuthMetrics は認証結果のメトリクス記録インターフェース。
type AuthMetrics interface {
	RecordAuthSuccess(action string)
	RecordAuthFailure(action string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はアルバム認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
	metrics AuthMetrics
}

// NewAuthHandler はAuthHandlerを生成する。metricsはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, metrics AuthMetrics) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
		metrics: metrics,
	}
}

// authRequest は認証リクエストのボディ。
type authRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Action   string `json:"action"`
}

// Authenticate はアルバムへのログインまたは新規作成を処理する。
// 成功時はセッションCookieを設定する。
// POST /api/auth
func (h *AuthHandler) Authenticate(w http.ResponseWriter, r *http.Request) {
	var req authRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	clientIP := middleware.ClientIP(r)

	session, err := h.service.Authenticate(r.Context(), req.Name, req.Password, req.Action, clientIP)
	if err != nil {
		if h.metrics != nil {
			h.metrics.RecordAuthFailure(req.Action)
		}
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordAuthSuccess(req.Action)
	}

	// セッションCookieを設定（HTTP Only、SameSite=Strict）
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    session.Token,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})

	writeSuccessResponse(w, http.StatusOK)
}

// Logout はセッションを破棄しCookieをクリアする。
// Cookieがないリクエストでも成功として扱う（冪等）。
// POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	// セッションCookieをクリア
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})

	writeSuccessResponse(w, http.StatusOK)
}
