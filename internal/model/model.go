// Package model はドメインモデルを定義する。
package model

import "time"

// Album はパスワード保護された写真コレクションを表す。
// nameはシステム全体で一意。password_hashはbcryptダイジェストで、
// APIレスポンスには決して含めない。
type Album struct {
	ID           string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// Session はアルバム認証済みであることを証明する期限付き資格情報を表す。
// トークンは推測不可能な32バイト乱数のhex表現。
// 発行時のクライアントIPに束縛され、異なるIPからの提示は無効として扱う。
type Session struct {
	Token     string
	AlbumID   string
	IPAddress string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Photo はアルバムに属する1枚の写真のメタデータを表す。
// 画像バイト列本体は外部ブロブストアに置かれ、BlobURLで参照する。
type Photo struct {
	ID           string    `json:"id"`
	AlbumID      string    `json:"album_id"`
	BlobURL      string    `json:"blob_url"`
	Description  string    `json:"description"`
	MimeType     string    `json:"mime_type"`
	UploadedAt   time.Time `json:"uploaded_at"`
	DisplayOrder int       `json:"display_order"`
	UploaderName string    `json:"uploader_name"`
	ViewCount    int       `json:"view_count"`
}
