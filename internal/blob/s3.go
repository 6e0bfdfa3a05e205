package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config はS3互換オブジェクトストレージの接続設定。
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string // ブロブURLの公開プレフィックス（CDN等を挟む場合に上書き）
}

// S3Store はS3互換オブジェクトストレージを使用したブロブストア。
type S3Store struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewS3Store はS3Storeを生成する。
// 接続確認は行わない（最初の操作で失敗が顕在化する）。
func NewS3Store(cfg S3Config) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	publicURL := strings.TrimRight(cfg.PublicURL, "/")
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	return &S3Store{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: publicURL,
	}, nil
}

// Put はキー配下にバイト列を保存し、公開URLを返す。
func (s *S3Store) Put(ctx context.Context, key, contentType string, r io.Reader, size int64) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object: %w", err)
	}

	return s.publicURL + "/" + key, nil
}

// Delete は公開URLが指すブロブを削除する。
// S3のRemoveObjectは存在しないキーに対しても成功するため冪等。
func (s *S3Store) Delete(ctx context.Context, blobURL string) error {
	key, err := KeyFromURL(blobURL)
	if err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

// List はバケット内の全ブロブを列挙する。照合スイープ用。
func (s *S3Store) List(ctx context.Context) ([]Info, error) {
	infos := []Info{}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", obj.Err)
		}
		infos = append(infos, Info{
			Key:          obj.Key,
			LastModified: obj.LastModified,
		})
	}
	return infos, nil
}

// compile-time interface check
var _ Store = (*S3Store)(nil)
