package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/albumbox/internal/middleware"
	"github.com/hitoshi/albumbox/internal/model"
	"github.com/hitoshi/albumbox/internal/photo"
)

// PhotoServiceInterface は写真ハンドラーが必要とするサービスインターフェース。
type PhotoServiceInterface interface {
	// List はアルバムの写真一覧を返す。
	List(ctx context.Context, albumID string) ([]*model.Photo, error)
	// Add は写真を追加する。
	Add(ctx context.Context, p photo.AddParams) (*model.Photo, error)
	// Delete は写真を削除する。
	Delete(ctx context.Context, albumID, photoID string) error
	// MarkViewed は写真の閲覧数を1増やす。
	MarkViewed(ctx context.Context, albumID, photoID string) (*model.Photo, error)
}

// PhotoImporterInterface はURLインポートのインターフェース。
type PhotoImporterInterface interface {
	ImportFromURL(ctx context.Context, albumID, rawURL, description, uploaderName string) (*model.Photo, error)
}

// ImportMetrics はURLインポート成功のメトリクス記録インターフェース。
type ImportMetrics interface {
	RecordPhotoImport()
}

// PhotoHandler は写真管理のHTTPハンドラー。
type PhotoHandler struct {
	service       PhotoServiceInterface
	importer      PhotoImporterInterface
	maxUploadSize int64
	importMetrics ImportMetrics
}

// NewPhotoHandler はPhotoHandlerを生成する。importMetricsはnilでもよい。
func NewPhotoHandler(service PhotoServiceInterface, importer PhotoImporterInterface, maxUploadSize int64, importMetrics ImportMetrics) *PhotoHandler {
	return &PhotoHandler{
		service:       service,
		importer:      importer,
		maxUploadSize: maxUploadSize,
		importMetrics: importMetrics,
	}
}

// photosResponse は写真一覧のレスポンス。
type photosResponse struct {
	Photos []*model.Photo `json:"photos"`
}

// photoResponse は単一写真のレスポンス。
type photoResponse struct {
	Photo *model.Photo `json:"photo"`
}

// FetchPhotos はアルバムの写真一覧を返す。
// album_id クエリはセッションのアルバムと一致する必要がある。別アルバムの
// IDを指定した場合は存在を漏らさないためALBUM_NOT_FOUNDを返す。
// GET /api/fetch_photos?album_id=X
func (h *PhotoHandler) FetchPhotos(w http.ResponseWriter, r *http.Request) {
	sessionAlbumID, err := middleware.AlbumIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	albumID := r.URL.Query().Get("album_id")
	if albumID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("album_idは必須です"))
		return
	}
	if albumID != sessionAlbumID {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewAlbumNotFoundError(albumID))
		return
	}

	photos, err := h.service.List(r.Context(), albumID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(photosResponse{Photos: photos})
}

// AddPhoto はmultipart/form-dataでの写真アップロードを処理する。
// フォームフィールド: album_id、photo（ファイル）、description、uploader_name。
// サイズ上限を超えるボディは413を返す。
// POST /api/add_photo
func (h *PhotoHandler) AddPhoto(w http.ResponseWriter, r *http.Request) {
	sessionAlbumID, err := middleware.AlbumIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	// multipartの枠組み分を考慮してファイル上限より少し大きめに制限する
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1<<20)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewPayloadTooLargeError(h.maxUploadSize))
			return
		}
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("multipartフォームの解析に失敗しました"))
		return
	}

	albumID := r.FormValue("album_id")
	if albumID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("album_idは必須です"))
		return
	}
	if albumID != sessionAlbumID {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewAlbumNotFoundError(albumID))
		return
	}

	file, header, err := r.FormFile("photo")
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("photoファイルは必須です"))
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewPayloadTooLargeError(h.maxUploadSize))
		return
	}

	added, err := h.service.Add(r.Context(), photo.AddParams{
		AlbumID:      albumID,
		Filename:     header.Filename,
		MimeType:     header.Header.Get("Content-Type"),
		Description:  r.FormValue("description"),
		UploaderName: r.FormValue("uploader_name"),
		Data:         file,
		Size:         header.Size,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(photoResponse{Photo: added})
}

// importPhotoRequest はURLインポートリクエストのボディ。
type importPhotoRequest struct {
	URL          string `json:"url"`
	Description  string `json:"description"`
	UploaderName string `json:"uploader_name"`
}

// ImportPhoto は公開URLからの写真インポートを処理する。
// POST /api/import_photo
func (h *PhotoHandler) ImportPhoto(w http.ResponseWriter, r *http.Request) {
	albumID, err := middleware.AlbumIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req importPhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.URL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidURLError("URLが空です"))
		return
	}

	imported, err := h.importer.ImportFromURL(r.Context(), albumID, req.URL, req.Description, req.UploaderName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.importMetrics != nil {
		h.importMetrics.RecordPhotoImport()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(photoResponse{Photo: imported})
}

// photoIDRequest は写真IDのみを持つリクエストボディ。
type photoIDRequest struct {
	ID string `json:"id"`
}

// DeletePhoto は写真の削除を処理する。
// DELETE /api/delete_photo
func (h *PhotoHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	albumID, err := middleware.AlbumIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req photoIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.ID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("idは必須です"))
		return
	}

	if err := h.service.Delete(r.Context(), albumID, req.ID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccessResponse(w, http.StatusOK)
}

// viewCountResponse は閲覧数加算のレスポンス。
type viewCountResponse struct {
	ViewCount int `json:"view_count"`
}

// PhotoViewed は写真の閲覧数を1増やす。
// POST /api/photo_viewed
func (h *PhotoHandler) PhotoViewed(w http.ResponseWriter, r *http.Request) {
	albumID, err := middleware.AlbumIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req photoIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}
	if req.ID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("idは必須です"))
		return
	}

	updated, err := h.service.MarkViewed(r.Context(), albumID, req.ID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(viewCountResponse{ViewCount: updated.ViewCount})
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// successResponse は成功のみを示すレスポンス。
type successResponse struct {
	Success bool `json:"success"`
}

// writeSuccessResponse は`{"success":true}`レスポンスを書き込む。
func writeSuccessResponse(w http.ResponseWriter, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(successResponse{Success: true})
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeAlbumNotFound, model.ErrCodePhotoNotFound:
		return http.StatusNotFound
	case model.ErrCodeInvalidPassword, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeAlbumNameTaken:
		return http.StatusConflict
	case model.ErrCodeInvalidAction, model.ErrCodeInvalidRequest, model.ErrCodeInvalidURL:
		return http.StatusBadRequest
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	case model.ErrCodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case model.ErrCodeStorageError, model.ErrCodePhotoSaveFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
