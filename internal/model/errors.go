// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, photo, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAlbumNotFound   = "ALBUM_NOT_FOUND"
	ErrCodeInvalidPassword = "INVALID_PASSWORD"
	ErrCodeInvalidAction   = "INVALID_ACTION"
	ErrCodeAlbumNameTaken  = "ALBUM_NAME_TAKEN"
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodePhotoNotFound   = "PHOTO_NOT_FOUND"
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeInvalidURL      = "INVALID_URL"
	ErrCodeSSRFBlocked     = "SSRF_BLOCKED"
	ErrCodeFetchFailed     = "FETCH_FAILED"
	ErrCodePayloadTooLarge = "PAYLOAD_TOO_LARGE"
	ErrCodeStorageError    = "STORAGE_ERROR"
	ErrCodePhotoSaveFailed = "PHOTO_SAVE_FAILED"
)

// NewAlbumNotFoundError はアルバム未検出エラーを生成する。
func NewAlbumNotFoundError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeAlbumNotFound,
		Message:  fmt.Sprintf("指定されたアルバムが見つかりません: %s", name),
		Category: "auth",
		Action:   "アルバム名を確認するか、新規作成してください。",
	}
}

// NewInvalidPasswordError はパスワード不一致エラーを生成する。
func NewInvalidPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPassword,
		Message:  "パスワードが正しくありません。",
		Category: "auth",
		Action:   "パスワードを確認して再度お試しください。",
	}
}

// NewInvalidActionError は不正なaction値のエラーを生成する。
func NewInvalidActionError(action string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAction,
		Message:  fmt.Sprintf("無効なactionです: %s", action),
		Category: "validation",
		Action:   "actionには login または create を指定してください。",
	}
}

// NewAlbumNameTakenError はアルバム名重複エラーを生成する。
func NewAlbumNameTakenError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeAlbumNameTaken,
		Message:  fmt.Sprintf("このアルバム名は既に使用されています: %s", name),
		Category: "validation",
		Action:   "別のアルバム名を指定するか、既存アルバムにログインしてください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewPhotoNotFoundError は写真未検出エラーを生成する。
func NewPhotoNotFoundError(photoID string) *APIError {
	return &APIError{
		Code:     ErrCodePhotoNotFound,
		Message:  fmt.Sprintf("指定された写真が見つかりません: %s", photoID),
		Category: "photo",
		Action:   "写真IDを確認してください。",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewFetchFailedError は画像取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("URLからの画像取得に失敗しました: %s", reason),
		Category: "photo",
		Action:   "URLが正しいか確認し、しばらく待ってから再度お試しください。",
	}
}

// NewPayloadTooLargeError はアップロードサイズ超過エラーを生成する。
func NewPayloadTooLargeError(maxBytes int64) *APIError {
	return &APIError{
		Code:     ErrCodePayloadTooLarge,
		Message:  fmt.Sprintf("画像サイズが上限（%dバイト）を超えています。", maxBytes),
		Category: "validation",
		Action:   "画像を縮小してから再度アップロードしてください。",
	}
}

// NewStorageError はブロブストア書き込み失敗エラーを生成する。
func NewStorageError() *APIError {
	return &APIError{
		Code:     ErrCodeStorageError,
		Message:  "画像の保存に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewPhotoSaveFailedError は写真メタデータ保存失敗エラーを生成する。
func NewPhotoSaveFailedError() *APIError {
	return &APIError{
		Code:     ErrCodePhotoSaveFailed,
		Message:  "写真情報の保存に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
