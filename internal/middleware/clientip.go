package middleware

import (
	"net/http"
	"strings"
)

// unknownClientIP はIPを特定できなかった場合のプレースホルダ。
// 逆プロキシ外からの直接アクセス等で発生する。
const unknownClientIP = "unknown"

// ClientIP はリクエストのクライアントIPを返す。
//
// X-Forwarded-Forの先頭エントリを優先し、なければCF-Connecting-IPを使う。
// どちらもなければ"unknown"を返す。セッションのIP束縛はこの値に対して
// 行われるため、認証とセッション検証で必ず同じ関数を使うこと。
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// "client, proxy1, proxy2" 形式の先頭がオリジナルのクライアント
		if idx := strings.Index(fwd, ","); idx >= 0 {
			fwd = fwd[:idx]
		}
		if ip := strings.TrimSpace(fwd); ip != "" {
			return ip
		}
	}

	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}

	return unknownClientIP
}
