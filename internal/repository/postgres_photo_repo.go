package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/albumbox/internal/model"
)

// PostgresPhotoRepo はPostgreSQLを使用した写真リポジトリ。
type PostgresPhotoRepo struct {
	db *sql.DB
}

// NewPostgresPhotoRepo はPostgresPhotoRepoを生成する。
func NewPostgresPhotoRepo(db *sql.DB) *PostgresPhotoRepo {
	return &PostgresPhotoRepo{db: db}
}

// ListByAlbumID はアルバムの写真一覧をdisplay_order、uploaded_atの昇順で返す。
// 写真が存在しない場合は空スライスを返す。
func (r *PostgresPhotoRepo) ListByAlbumID(ctx context.Context, albumID string) ([]*model.Photo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, album_id, blob_url, description, mime_type, uploaded_at,
		        display_order, uploader_name, view_count
		 FROM photos
		 WHERE album_id = $1
		 ORDER BY display_order, uploaded_at`,
		albumID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	photos := []*model.Photo{}
	for rows.Next() {
		photo := &model.Photo{}
		if err := rows.Scan(
			&photo.ID, &photo.AlbumID, &photo.BlobURL, &photo.Description,
			&photo.MimeType, &photo.UploadedAt, &photo.DisplayOrder,
			&photo.UploaderName, &photo.ViewCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		photos = append(photos, photo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate photos: %w", err)
	}

	return photos, nil
}

// FindByID は指定IDの写真を取得する。見つからない場合はnilを返す。
func (r *PostgresPhotoRepo) FindByID(ctx context.Context, id string) (*model.Photo, error) {
	photo := &model.Photo{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, album_id, blob_url, description, mime_type, uploaded_at,
		        display_order, uploader_name, view_count
		 FROM photos WHERE id = $1`,
		id,
	).Scan(
		&photo.ID, &photo.AlbumID, &photo.BlobURL, &photo.Description,
		&photo.MimeType, &photo.UploadedAt, &photo.DisplayOrder,
		&photo.UploaderName, &photo.ViewCount,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find photo by ID: %w", err)
	}

	return photo, nil
}

// Create は写真レコードを作成する。
func (r *PostgresPhotoRepo) Create(ctx context.Context, photo *model.Photo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO photos (id, album_id, blob_url, description, mime_type,
		                     uploaded_at, display_order, uploader_name, view_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		photo.ID, photo.AlbumID, photo.BlobURL, photo.Description, photo.MimeType,
		photo.UploadedAt, photo.DisplayOrder, photo.UploaderName, photo.ViewCount,
	)
	if err != nil {
		return fmt.Errorf("failed to create photo: %w", err)
	}
	return nil
}

// DeleteByID は指定IDの写真レコードを削除する。
// 削除された場合はtrue、該当行がなかった場合はfalseを返す。
func (r *PostgresPhotoRepo) DeleteByID(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM photos WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete photo: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// IncrementViewCount は写真の閲覧数を1増やし、更新後の写真を返す。
// 見つからない場合はnilを返す。
func (r *PostgresPhotoRepo) IncrementViewCount(ctx context.Context, id string) (*model.Photo, error) {
	photo := &model.Photo{}
	err := r.db.QueryRowContext(ctx,
		`UPDATE photos SET view_count = view_count + 1
		 WHERE id = $1
		 RETURNING id, album_id, blob_url, description, mime_type, uploaded_at,
		           display_order, uploader_name, view_count`,
		id,
	).Scan(
		&photo.ID, &photo.AlbumID, &photo.BlobURL, &photo.Description,
		&photo.MimeType, &photo.UploadedAt, &photo.DisplayOrder,
		&photo.UploaderName, &photo.ViewCount,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to increment view count: %w", err)
	}

	return photo, nil
}

// ListAllBlobURLs は全写真のblob_urlを返す。孤児ブロブの照合に使用する。
func (r *PostgresPhotoRepo) ListAllBlobURLs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT blob_url FROM photos`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blob URLs: %w", err)
	}
	defer rows.Close()

	urls := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan blob URL: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate blob URLs: %w", err)
	}

	return urls, nil
}

// compile-time interface check
var _ PhotoRepository = (*PostgresPhotoRepo)(nil)
