// Package photo はアルバムに紐づく写真のライフサイクル操作を提供する。
//
// 画像バイト列はブロブストアに、メタデータはphotosテーブルに保存される。
// 2つの書き込みはトランザクションで束ねられないため、追加はブロブ先行
// （ブロブなしの行を作らない）、削除は行先行（行なしのブロブは照合
// スイープが回収する）の順序で行い、孤児が発生した場合は専用のログと
// メトリクスで顕在化させる。
package photo

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/albumbox/internal/blob"
	"github.com/hitoshi/albumbox/internal/model"
	"github.com/hitoshi/albumbox/internal/repository"
	"github.com/hitoshi/albumbox/internal/security"
)

// defaultMimeType はmime_type未指定時に使用する画像タイプ。
const defaultMimeType = "image/jpeg"

// MetricsRecorder は写真操作のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordPhotoUpload()
	RecordPhotoDelete()
	RecordOrphanedBlob()
	RecordBlobOpLatency(op string, d time.Duration)
}

// noopRecorder はメトリクス未設定時のプレースホルダ。
type noopRecorder struct{}

func (noopRecorder) RecordPhotoUpload()                              {}
func (noopRecorder) RecordPhotoDelete()                              {}
func (noopRecorder) RecordOrphanedBlob()                             {}
func (noopRecorder) RecordBlobOpLatency(op string, d time.Duration) {}

// Service は写真ライフサイクルのビジネスロジックを提供する。
type Service struct {
	photoRepo repository.PhotoRepository
	blobStore blob.Store
	sanitizer *security.DescriptionSanitizer
	metrics   MetricsRecorder
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(
	photoRepo repository.PhotoRepository,
	blobStore blob.Store,
	sanitizer *security.DescriptionSanitizer,
	metrics MetricsRecorder,
) *Service {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Service{
		photoRepo: photoRepo,
		blobStore: blobStore,
		sanitizer: sanitizer,
		metrics:   metrics,
	}
}

// List はアルバムの写真一覧を返す。
// 順序はdisplay_order、uploaded_atの昇順。写真ゼロ件は空スライス（エラーではない）。
func (s *Service) List(ctx context.Context, albumID string) ([]*model.Photo, error) {
	if albumID == "" {
		return nil, model.NewInvalidRequestError("album_idは必須です")
	}

	photos, err := s.photoRepo.ListByAlbumID(ctx, albumID)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	return photos, nil
}

// AddParams は写真追加のパラメータ。
type AddParams struct {
	AlbumID      string
	Filename     string
	MimeType     string
	Description  string
	UploaderName string
	Data         io.Reader
	Size         int64
}

// Add は写真を追加する。
// (1) ブロブストアに画像を保存し、(2) メタデータ行を挿入し、(3) サーバ採番
// 済みフィールドを含む写真を返す。ブロブ書き込みに失敗した場合は行を作らず
// STORAGE_ERRORを返す。行挿入に失敗した場合は補償としてブロブ削除を試み、
// 失敗時は孤児ブロブとして記録する。
func (s *Service) Add(ctx context.Context, p AddParams) (*model.Photo, error) {
	if p.AlbumID == "" {
		return nil, model.NewInvalidRequestError("album_idは必須です")
	}
	if p.Data == nil {
		return nil, model.NewInvalidRequestError("画像データは必須です")
	}

	mimeType := p.MimeType
	if mimeType == "" {
		mimeType = defaultMimeType
	}

	now := time.Now()
	key := blob.NewKey(p.Filename, now)

	start := time.Now()
	blobURL, err := s.blobStore.Put(ctx, key, mimeType, p.Data, p.Size)
	s.metrics.RecordBlobOpLatency("put", time.Since(start))
	if err != nil {
		slog.Error("blob write failed",
			slog.String("album_id", p.AlbumID),
			slog.String("blob_key", key),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStorageError()
	}

	photo := &model.Photo{
		ID:           uuid.New().String(),
		AlbumID:      p.AlbumID,
		BlobURL:      blobURL,
		Description:  s.sanitizer.Sanitize(p.Description),
		MimeType:     mimeType,
		UploadedAt:   now,
		DisplayOrder: 0,
		UploaderName: s.sanitizer.Sanitize(p.UploaderName),
		ViewCount:    0,
	}

	if err := s.photoRepo.Create(ctx, photo); err != nil {
		// 行のないブロブが残らないよう補償削除を試みる。
		if delErr := s.blobStore.Delete(ctx, blobURL); delErr != nil {
			s.metrics.RecordOrphanedBlob()
			slog.Error("orphaned blob: row insert failed and compensating delete failed",
				slog.String("album_id", p.AlbumID),
				slog.String("orphan_key", key),
				slog.String("insert_error", err.Error()),
				slog.String("delete_error", delErr.Error()),
			)
		} else {
			slog.Error("photo row insert failed, blob rolled back",
				slog.String("album_id", p.AlbumID),
				slog.String("blob_key", key),
				slog.String("error", err.Error()),
			)
		}
		return nil, model.NewPhotoSaveFailedError()
	}

	s.metrics.RecordPhotoUpload()
	slog.Info("photo added",
		slog.String("photo_id", photo.ID),
		slog.String("album_id", photo.AlbumID),
		slog.String("mime_type", photo.MimeType),
	)
	return photo, nil
}

// Delete は写真を削除する。
// 写真が存在しない、またはalbumIDの所有でない場合はPHOTO_NOT_FOUNDを返す
// （他アルバムの写真の存在は漏らさない）。行削除後のブロブ削除に失敗した
// 場合、行は既に消えているため操作自体は成功とし、孤児ブロブとして記録する。
func (s *Service) Delete(ctx context.Context, albumID, photoID string) error {
	if photoID == "" {
		return model.NewInvalidRequestError("idは必須です")
	}

	photo, err := s.photoRepo.FindByID(ctx, photoID)
	if err != nil {
		return fmt.Errorf("failed to find photo: %w", err)
	}
	if photo == nil || photo.AlbumID != albumID {
		return model.NewPhotoNotFoundError(photoID)
	}

	deleted, err := s.photoRepo.DeleteByID(ctx, photoID)
	if err != nil {
		return fmt.Errorf("failed to delete photo row: %w", err)
	}
	if !deleted {
		// FindByIDとの間で別リクエストが先に削除したケース
		return model.NewPhotoNotFoundError(photoID)
	}

	start := time.Now()
	if err := s.blobStore.Delete(ctx, photo.BlobURL); err != nil {
		s.metrics.RecordOrphanedBlob()
		slog.Error("orphaned blob: row deleted but blob delete failed",
			slog.String("photo_id", photoID),
			slog.String("orphan_url", photo.BlobURL),
			slog.String("error", err.Error()),
		)
	}
	s.metrics.RecordBlobOpLatency("delete", time.Since(start))

	s.metrics.RecordPhotoDelete()
	slog.Info("photo deleted",
		slog.String("photo_id", photoID),
		slog.String("album_id", albumID),
	)
	return nil
}

// MarkViewed は写真の閲覧数を1増やし、更新後の閲覧数を返す。
// 所有チェックはDeleteと同じセマンティクス。
func (s *Service) MarkViewed(ctx context.Context, albumID, photoID string) (*model.Photo, error) {
	if photoID == "" {
		return nil, model.NewInvalidRequestError("idは必須です")
	}

	photo, err := s.photoRepo.FindByID(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("failed to find photo: %w", err)
	}
	if photo == nil || photo.AlbumID != albumID {
		return nil, model.NewPhotoNotFoundError(photoID)
	}

	updated, err := s.photoRepo.IncrementViewCount(ctx, photoID)
	if err != nil {
		return nil, fmt.Errorf("failed to increment view count: %w", err)
	}
	if updated == nil {
		return nil, model.NewPhotoNotFoundError(photoID)
	}

	return updated, nil
}
