// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/albumbox/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookie名。
const SessionCookieName = "session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// albumIDContextKey はリクエストコンテキストにアルバムIDを格納するためのキー。
var albumIDContextKey = contextKey("album_id")

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByTokenAndIP(ctx context.Context, token, ip string) (*model.Session, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッショントークンを読み取り、
// トークンとクライアントIPの組で有効性を検証するミドルウェアを返す。
// 別のIPから同じトークンを提示しても検証は失敗する（セッションのIP束縛）。
// 認証済みアルバムIDをリクエストコンテキストに注入する。
// 未認証リクエストには401の統一エラーレスポンスを返す。
func NewSessionMiddleware(sessionFinder SessionFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. Cookieからセッショントークンを取得
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 2. トークンとクライアントIPの組でセッションを検証
			clientIP := ClientIP(r)
			session, err := sessionFinder.FindByTokenAndIP(r.Context(), cookie.Value, clientIP)
			if err != nil {
				slog.Error("failed to find session",
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if session == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			// 3. 認証済みアルバムIDをコンテキストに注入
			ctx := context.WithValue(r.Context(), albumIDContextKey, session.AlbumID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AlbumIDFromContext はリクエストコンテキストからアルバムIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func AlbumIDFromContext(ctx context.Context) (string, error) {
	albumID, ok := ctx.Value(albumIDContextKey).(string)
	if !ok || albumID == "" {
		return "", fmt.Errorf("album ID not found in context")
	}
	return albumID, nil
}

// ContextWithAlbumID はコンテキストにアルバムIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithAlbumID(ctx context.Context, albumID string) context.Context {
	return context.WithValue(ctx, albumIDContextKey, albumID)
}
