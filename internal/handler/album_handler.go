package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/albumbox/internal/middleware"
	"github.com/hitoshi/albumbox/internal/model"
)

// AlbumFinder はアルバムページハンドラーが必要とするリポジトリインターフェース。
// repository.AlbumRepositoryの部分集合として定義する。
type AlbumFinder interface {
	FindByID(ctx context.Context, id string) (*model.Album, error)
}

// AlbumHandler はアルバムページ解決のHTTPハンドラー。
type AlbumHandler struct {
	finder AlbumFinder
}

// NewAlbumHandler はAlbumHandlerを生成する。
func NewAlbumHandler(finder AlbumFinder) *AlbumHandler {
	return &AlbumHandler{finder: finder}
}

// albumPageResponse はアルバムページ解決のレスポンス。
type albumPageResponse struct {
	AlbumID   string `json:"album_id"`
	AlbumName string `json:"album_name"`
}

// AlbumsPage はセッションのアルバムを解決して返す。
// name クエリが指定された場合、解決されたアルバム名と一致しなければ
// セッション無効として401を返す（別アルバムのページをセッション流用で
// 開けないようにする）。
// GET /api/albums_page?name=X
func (h *AlbumHandler) AlbumsPage(w http.ResponseWriter, r *http.Request) {
	albumID, err := middleware.AlbumIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	album, err := h.finder.FindByID(r.Context(), albumID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if album == nil {
		// セッションは有効だがアルバム行が消えているケース
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewAlbumNotFoundError(albumID))
		return
	}

	if name := r.URL.Query().Get("name"); name != "" && name != album.Name {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(albumPageResponse{
		AlbumID:   album.ID,
		AlbumName: album.Name,
	})
}
