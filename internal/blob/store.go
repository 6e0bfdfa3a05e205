// Package blob は画像バイト列を保持する外部ブロブストアへのアクセスを提供する。
//
// 写真レコードはブロブをURLで参照する。バックエンドはS3互換オブジェクト
// ストレージとローカルファイルシステムの2種類で、どちらも同じStore
// インターフェースを実装する。
package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"
)

// Info はストア内の1ブロブのメタデータを表す。孤児ブロブの照合に使用する。
type Info struct {
	Key          string
	LastModified time.Time
}

// Store はブロブストアのインターフェース。
type Store interface {
	// Put はキー配下にバイト列を保存し、公開URLを返す。
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error)

	// Delete は公開URLが指すブロブを削除する。
	// 既に存在しないブロブの削除はエラーにしない（冪等）。
	Delete(ctx context.Context, blobURL string) error

	// List はストア内の全ブロブを列挙する。照合スイープ用。
	List(ctx context.Context) ([]Info, error)
}

// NewKey は衝突耐性のあるブロブキーを生成する。
// 形式はナノ秒タイムスタンプ + サニタイズ済み元ファイル名。
func NewKey(filename string, now time.Time) string {
	return fmt.Sprintf("%d-%s", now.UnixNano(), sanitizeFilename(filename))
}

// KeyFromURL は公開URLからブロブキーを取り出す。
func KeyFromURL(blobURL string) (string, error) {
	parsed, err := url.Parse(blobURL)
	if err != nil {
		return "", fmt.Errorf("invalid blob URL: %w", err)
	}
	key := path.Base(parsed.Path)
	if key == "" || key == "." || key == "/" {
		return "", fmt.Errorf("blob URL has no key: %s", blobURL)
	}
	return key, nil
}

// sanitizeFilename はファイル名をキーとして安全な形に変換する。
// パス区切りや制御文字を除去し、空になった場合は"photo"を返す。
func sanitizeFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	s := strings.Trim(b.String(), "._")
	if s == "" {
		return "photo"
	}
	return s
}
