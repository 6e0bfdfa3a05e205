package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/albumbox/internal/model"
)

// PostgresAlbumRepo はPostgreSQLを使用したアルバムリポジトリ。
type PostgresAlbumRepo struct {
	db *sql.DB
}

// NewPostgresAlbumRepo はPostgresAlbumRepoを生成する。
func NewPostgresAlbumRepo(db *sql.DB) *PostgresAlbumRepo {
	return &PostgresAlbumRepo{db: db}
}

// FindByName は指定名のアルバムを取得する。見つからない場合はnilを返す。
func (r *PostgresAlbumRepo) FindByName(ctx context.Context, name string) (*model.Album, error) {
	album := &model.Album{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, password_hash, created_at FROM albums WHERE name = $1`,
		name,
	).Scan(&album.ID, &album.Name, &album.PasswordHash, &album.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find album by name: %w", err)
	}

	return album, nil
}

// FindByID は指定IDのアルバムを取得する。見つからない場合はnilを返す。
func (r *PostgresAlbumRepo) FindByID(ctx context.Context, id string) (*model.Album, error) {
	album := &model.Album{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, password_hash, created_at FROM albums WHERE id = $1`,
		id,
	).Scan(&album.ID, &album.Name, &album.PasswordHash, &album.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find album by ID: %w", err)
	}

	return album, nil
}

// Create はアルバムを作成する。
// 名前の一意制約違反はErrDuplicateAlbumNameに変換する。
func (r *PostgresAlbumRepo) Create(ctx context.Context, album *model.Album) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO albums (id, name, password_hash, created_at)
		 VALUES ($1, $2, $3, $4)`,
		album.ID, album.Name, album.PasswordHash, album.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return ErrDuplicateAlbumName
		}
		return fmt.Errorf("failed to create album: %w", err)
	}
	return nil
}

// compile-time interface check
var _ AlbumRepository = (*PostgresAlbumRepo)(nil)
