package photo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hitoshi/albumbox/internal/model"
	"github.com/hitoshi/albumbox/internal/security"
)

// importTimeout は外部URLからの画像取得のタイムアウト。
const importTimeout = 15 * time.Second

// Importer は公開URLからの写真インポートを提供する。
// 取得はSSRF防止付きHTTPクライアント経由で行い、サイズ上限を超える
// レスポンスは拒否する。
type Importer struct {
	service *Service
	guard   security.SSRFGuardService
	maxSize int64
}

// NewImporter はImporterを生成する。
func NewImporter(service *Service, guard security.SSRFGuardService, maxSize int64) *Importer {
	return &Importer{
		service: service,
		guard:   guard,
		maxSize: maxSize,
	}
}

// ImportFromURL は指定URLから画像を取得しアルバムに追加する。
// URLはスキーム・ホストの静的検証とsafeurlのDialer検証の両方を通過する
// 必要がある。content-typeがimage/*でないレスポンスは拒否する。
func (i *Importer) ImportFromURL(ctx context.Context, albumID, rawURL, description, uploaderName string) (*model.Photo, error) {
	if albumID == "" {
		return nil, model.NewInvalidRequestError("album_idは必須です")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, model.NewInvalidURLError(rawURL)
	}

	if err := i.guard.ValidateURL(rawURL); err != nil {
		return nil, model.NewSSRFBlockedError()
	}

	client := i.guard.NewSafeClient(importTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(rawURL)
	}

	resp, err := client.Do(req)
	if err != nil {
		// safeurlのDialer検証（DNS再バインディング対策）もここで失敗する
		return nil, model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewFetchFailedError(fmt.Sprintf("status %d", resp.StatusCode))
	}

	mimeType := resp.Header.Get("Content-Type")
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, model.NewFetchFailedError(fmt.Sprintf("content type %q is not an image", mimeType))
	}

	// 上限+1バイトまで読み、超過を検出する
	data, err := io.ReadAll(io.LimitReader(resp.Body, i.maxSize+1))
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}
	if int64(len(data)) > i.maxSize {
		return nil, model.NewPayloadTooLargeError(i.maxSize)
	}
	if len(data) == 0 {
		return nil, model.NewFetchFailedError("empty response body")
	}

	filename := path.Base(parsed.Path)
	if filename == "/" || filename == "." {
		filename = "imported"
	}

	return i.service.Add(ctx, AddParams{
		AlbumID:      albumID,
		Filename:     filename,
		MimeType:     mimeType,
		Description:  description,
		UploaderName: uploaderName,
		Data:         bytes.NewReader(data),
		Size:         int64(len(data)),
	})
}
