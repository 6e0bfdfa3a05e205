package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/albumbox/internal/middleware"
	"github.com/hitoshi/albumbox/internal/model"
	"github.com/hitoshi/albumbox/internal/photo"
)

// --- モック ---

type mockPhotoService struct {
	listFn       func(ctx context.Context, albumID string) ([]*model.Photo, error)
	addFn        func(ctx context.Context, p photo.AddParams) (*model.Photo, error)
	deleteFn     func(ctx context.Context, albumID, photoID string) error
	markViewedFn func(ctx context.Context, albumID, photoID string) (*model.Photo, error)
}

func (m *mockPhotoService) List(ctx context.Context, albumID string) ([]*model.Photo, error) {
	if m.listFn != nil {
		return m.listFn(ctx, albumID)
	}
	return []*model.Photo{}, nil
}
func (m *mockPhotoService) Add(ctx context.Context, p photo.AddParams) (*model.Photo, error) {
	if m.addFn != nil {
		return m.addFn(ctx, p)
	}
	return &model.Photo{ID: "photo-1", AlbumID: p.AlbumID}, nil
}
func (m *mockPhotoService) Delete(ctx context.Context, albumID, photoID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, albumID, photoID)
	}
	return nil
}
func (m *mockPhotoService) MarkViewed(ctx context.Context, albumID, photoID string) (*model.Photo, error) {
	if m.markViewedFn != nil {
		return m.markViewedFn(ctx, albumID, photoID)
	}
	return nil, nil
}

type mockImporter struct {
	importFn func(ctx context.Context, albumID, rawURL, description, uploaderName string) (*model.Photo, error)
}

func (m *mockImporter) ImportFromURL(ctx context.Context, albumID, rawURL, description, uploaderName string) (*model.Photo, error) {
	if m.importFn != nil {
		return m.importFn(ctx, albumID, rawURL, description, uploaderName)
	}
	return &model.Photo{ID: "photo-1", AlbumID: albumID}, nil
}

const testMaxUpload = 10 << 20

func newTestPhotoHandler(svc *mockPhotoService, imp *mockImporter) *PhotoHandler {
	return NewPhotoHandler(svc, imp, testMaxUpload, nil)
}

// gatedRequest はセッションゲート通過後相当のリクエストを作る。
func gatedRequest(method, target string, body io.Reader) *http.Request {
	r := httptest.NewRequest(method, target, body)
	return r.WithContext(middleware.ContextWithAlbumID(r.Context(), "album-1"))
}

// multipartBody はadd_photo用のmultipartボディを作る。
func multipartBody(t *testing.T, albumID, filename string, data []byte, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if albumID != "" {
		if err := mw.WriteField("album_id", albumID); err != nil {
			t.Fatalf("failed to write album_id field: %v", err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write %s field: %v", k, err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("photo", filename)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatalf("failed to write file data: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

// --- テスト ---

// 写真一覧の取得を検証
func TestPhotoHandler_FetchPhotos_Success(t *testing.T) {
	svc := &mockPhotoService{
		listFn: func(ctx context.Context, albumID string) ([]*model.Photo, error) {
			return []*model.Photo{
				{ID: "photo-1", AlbumID: albumID},
				{ID: "photo-2", AlbumID: albumID},
			}, nil
		},
	}

	h := newTestPhotoHandler(svc, &mockImporter{})
	w := httptest.NewRecorder()

	h.FetchPhotos(w, gatedRequest("GET", "/api/fetch_photos?album_id=album-1", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body photosResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if len(body.Photos) != 2 {
		t.Errorf("len(photos) = %d, want 2", len(body.Photos))
	}
}

// album_id未指定が400になることを検証
func TestPhotoHandler_FetchPhotos_MissingAlbumID(t *testing.T) {
	h := newTestPhotoHandler(&mockPhotoService{}, &mockImporter{})
	w := httptest.NewRecorder()

	h.FetchPhotos(w, gatedRequest("GET", "/api/fetch_photos", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// セッションと異なるalbum_idが404になることを検証（存在を漏らさない）
func TestPhotoHandler_FetchPhotos_ForeignAlbum(t *testing.T) {
	h := newTestPhotoHandler(&mockPhotoService{
		listFn: func(ctx context.Context, albumID string) ([]*model.Photo, error) {
			t.Error("service should not be called for a foreign album")
			return nil, nil
		},
	}, &mockImporter{})
	w := httptest.NewRecorder()

	h.FetchPhotos(w, gatedRequest("GET", "/api/fetch_photos?album_id=album-other", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}

	var body apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Code != model.ErrCodeAlbumNotFound {
		t.Errorf("error code = %q, want %q", body.Code, model.ErrCodeAlbumNotFound)
	}
}

// multipartアップロードが201と写真メタデータを返すことを検証
func TestPhotoHandler_AddPhoto_Success(t *testing.T) {
	var gotParams photo.AddParams
	svc := &mockPhotoService{
		addFn: func(ctx context.Context, p photo.AddParams) (*model.Photo, error) {
			gotParams = p
			return &model.Photo{ID: "photo-1", AlbumID: p.AlbumID, MimeType: "image/jpeg"}, nil
		},
	}

	body, contentType := multipartBody(t, "album-1", "beach.jpg", []byte("jpegbytes"), map[string]string{
		"description":   "at the beach",
		"uploader_name": "hitoshi",
	})

	h := newTestPhotoHandler(svc, &mockImporter{})
	r := gatedRequest("POST", "/api/add_photo", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.AddPhoto(w, r)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}

	if gotParams.AlbumID != "album-1" {
		t.Errorf("AlbumID = %q, want album-1", gotParams.AlbumID)
	}
	if gotParams.Filename != "beach.jpg" {
		t.Errorf("Filename = %q, want beach.jpg", gotParams.Filename)
	}
	if gotParams.Description != "at the beach" {
		t.Errorf("Description = %q, want 'at the beach'", gotParams.Description)
	}
	if gotParams.UploaderName != "hitoshi" {
		t.Errorf("UploaderName = %q, want hitoshi", gotParams.UploaderName)
	}
	if gotParams.Size != int64(len("jpegbytes")) {
		t.Errorf("Size = %d, want %d", gotParams.Size, len("jpegbytes"))
	}

	var resp photoResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Photo.ID != "photo-1" {
		t.Errorf("photo id = %q, want photo-1", resp.Photo.ID)
	}
}

// セッションと異なるalbum_idへのアップロードが404になることを検証
func TestPhotoHandler_AddPhoto_ForeignAlbum(t *testing.T) {
	body, contentType := multipartBody(t, "album-other", "x.jpg", []byte("data"), nil)

	h := newTestPhotoHandler(&mockPhotoService{}, &mockImporter{})
	r := gatedRequest("POST", "/api/add_photo", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.AddPhoto(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// photoファイルなしのアップロードが400になることを検証
func TestPhotoHandler_AddPhoto_MissingFile(t *testing.T) {
	body, contentType := multipartBody(t, "album-1", "", nil, nil)

	h := newTestPhotoHandler(&mockPhotoService{}, &mockImporter{})
	r := gatedRequest("POST", "/api/add_photo", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.AddPhoto(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// サイズ上限超過のアップロードが413になることを検証
func TestPhotoHandler_AddPhoto_TooLarge(t *testing.T) {
	body, contentType := multipartBody(t, "album-1", "big.jpg", make([]byte, 64), nil)

	// 上限を極端に小さくしたハンドラー
	h := NewPhotoHandler(&mockPhotoService{}, &mockImporter{}, 16, nil)
	r := gatedRequest("POST", "/api/add_photo", body)
	r.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()

	h.AddPhoto(w, r)

	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", w.Code)
	}

	var resp apiErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Code != model.ErrCodePayloadTooLarge {
		t.Errorf("error code = %q, want %q", resp.Code, model.ErrCodePayloadTooLarge)
	}
}

// URLインポートが201を返すことを検証
func TestPhotoHandler_ImportPhoto_Success(t *testing.T) {
	imp := &mockImporter{
		importFn: func(ctx context.Context, albumID, rawURL, description, uploaderName string) (*model.Photo, error) {
			if albumID != "album-1" {
				t.Errorf("albumID = %q, want album-1", albumID)
			}
			if rawURL != "https://example.com/cat.jpg" {
				t.Errorf("rawURL = %q", rawURL)
			}
			return &model.Photo{ID: "photo-1", AlbumID: albumID}, nil
		},
	}

	h := newTestPhotoHandler(&mockPhotoService{}, imp)
	r := gatedRequest("POST", "/api/import_photo", strings.NewReader(`{"url":"https://example.com/cat.jpg"}`))
	w := httptest.NewRecorder()

	h.ImportPhoto(w, r)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
}

// SSRFブロックされたインポートが403になることを検証
func TestPhotoHandler_ImportPhoto_SSRFBlocked(t *testing.T) {
	imp := &mockImporter{
		importFn: func(ctx context.Context, albumID, rawURL, description, uploaderName string) (*model.Photo, error) {
			return nil, model.NewSSRFBlockedError()
		},
	}

	h := newTestPhotoHandler(&mockPhotoService{}, imp)
	r := gatedRequest("POST", "/api/import_photo", strings.NewReader(`{"url":"http://10.0.0.1/x.jpg"}`))
	w := httptest.NewRecorder()

	h.ImportPhoto(w, r)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

// URL未指定のインポートが400になることを検証
func TestPhotoHandler_ImportPhoto_EmptyURL(t *testing.T) {
	h := newTestPhotoHandler(&mockPhotoService{}, &mockImporter{})
	r := gatedRequest("POST", "/api/import_photo", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	h.ImportPhoto(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// 写真削除が200と{success:true}を返すことを検証
func TestPhotoHandler_DeletePhoto_Success(t *testing.T) {
	deleted := ""
	svc := &mockPhotoService{
		deleteFn: func(ctx context.Context, albumID, photoID string) error {
			if albumID != "album-1" {
				t.Errorf("albumID = %q, want album-1", albumID)
			}
			deleted = photoID
			return nil
		},
	}

	h := newTestPhotoHandler(svc, &mockImporter{})
	r := gatedRequest("DELETE", "/api/delete_photo", strings.NewReader(`{"id":"photo-1"}`))
	w := httptest.NewRecorder()

	h.DeletePhoto(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if deleted != "photo-1" {
		t.Errorf("deleted id = %q, want photo-1", deleted)
	}

	var body successResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if !body.Success {
		t.Error("success = false, want true")
	}
}

// 存在しない写真の削除が404になることを検証
func TestPhotoHandler_DeletePhoto_NotFound(t *testing.T) {
	svc := &mockPhotoService{
		deleteFn: func(ctx context.Context, albumID, photoID string) error {
			return model.NewPhotoNotFoundError(photoID)
		},
	}

	h := newTestPhotoHandler(svc, &mockImporter{})
	r := gatedRequest("DELETE", "/api/delete_photo", strings.NewReader(`{"id":"photo-404"}`))
	w := httptest.NewRecorder()

	h.DeletePhoto(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

// id未指定の削除が400になることを検証
func TestPhotoHandler_DeletePhoto_MissingID(t *testing.T) {
	h := newTestPhotoHandler(&mockPhotoService{}, &mockImporter{})
	r := gatedRequest("DELETE", "/api/delete_photo", strings.NewReader(`{}`))
	w := httptest.NewRecorder()

	h.DeletePhoto(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

// 閲覧数加算が更新後の値を返すことを検証
func TestPhotoHandler_PhotoViewed(t *testing.T) {
	svc := &mockPhotoService{
		markViewedFn: func(ctx context.Context, albumID, photoID string) (*model.Photo, error) {
			return &model.Photo{ID: photoID, AlbumID: albumID, ViewCount: 5}, nil
		},
	}

	h := newTestPhotoHandler(svc, &mockImporter{})
	r := gatedRequest("POST", "/api/photo_viewed", strings.NewReader(`{"id":"photo-1"}`))
	w := httptest.NewRecorder()

	h.PhotoViewed(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body viewCountResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.ViewCount != 5 {
		t.Errorf("view_count = %d, want 5", body.ViewCount)
	}
}
