// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/albumbox/internal/model"
)

// ErrDuplicateAlbumName は一意制約違反によるアルバム名重複を表す。
// postgresのunique_violation(23505)をストア層でこのエラーに変換する。
var ErrDuplicateAlbumName = errors.New("album name already exists")

// AlbumRepository はアルバムデータの永続化インターフェース。
type AlbumRepository interface {
	// FindByName は指定名のアルバムを取得する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Album, error)

	// FindByID は指定IDのアルバムを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Album, error)

	// Create はアルバムを作成する。
	// 名前が既に存在する場合はErrDuplicateAlbumNameを返す。
	Create(ctx context.Context, album *model.Album) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByTokenAndIP はトークンとクライアントIPの組でセッションを検索する。
	// 期限切れまたはIP不一致の場合はnilを返す。
	FindByTokenAndIP(ctx context.Context, token, ip string) (*model.Session, error)

	// DeleteByToken は指定トークンのセッションを削除する。
	DeleteByToken(ctx context.Context, token string) error

	// DeleteExpired は期限切れセッションを一括削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// PhotoRepository は写真メタデータの永続化インターフェース。
type PhotoRepository interface {
	// ListByAlbumID はアルバムの写真一覧をdisplay_order、uploaded_atの昇順で返す。
	// 写真が存在しない場合は空スライスを返す（エラーではない）。
	ListByAlbumID(ctx context.Context, albumID string) ([]*model.Photo, error)

	// FindByID は指定IDの写真を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Photo, error)

	// Create は写真レコードを作成する。
	Create(ctx context.Context, photo *model.Photo) error

	// DeleteByID は指定IDの写真レコードを削除する。
	// 削除された場合はtrue、該当行がなかった場合はfalseを返す。
	DeleteByID(ctx context.Context, id string) (bool, error)

	// IncrementViewCount は写真の閲覧数を1増やし、更新後の写真を返す。
	// 見つからない場合はnilを返す。
	IncrementViewCount(ctx context.Context, id string) (*model.Photo, error)

	// ListAllBlobURLs は全写真のblob_urlを返す。孤児ブロブの照合に使用する。
	ListAllBlobURLs(ctx context.Context) ([]string, error)
}
