// Package config は環境変数ベースのアプリケーション設定を提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ブロブストアのバックエンド種別。
const (
	BlobBackendFS = "fs"
	BlobBackendS3 = "s3"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Session
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int

	// Upload
	UploadMaxSize int64 // アップロード可能な画像の最大バイト数

	// Blob storage
	BlobBackend   string // "fs" または "s3"
	BlobDir       string // fsバックエンドの保存先ディレクトリ
	BlobPublicURL string // ブロブURLの公開プレフィックス
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3Bucket      string
	S3UseSSL      bool

	// Rate Limit（req/min単位）
	RateLimitGeneral int
	RateLimitUpload  int

	// Worker
	CleanupInterval time.Duration

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 12)
	cfg.UploadMaxSize = getEnvInt64("UPLOAD_MAX_SIZE", 10*1024*1024)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitUpload = getEnvInt("RATE_LIMIT_UPLOAD", 20)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	cfg.BlobBackend = getEnvString("BLOB_BACKEND", BlobBackendFS)
	if cfg.BlobBackend != BlobBackendFS && cfg.BlobBackend != BlobBackendS3 {
		return nil, fmt.Errorf("BLOB_BACKEND must be %q or %q, got %q",
			BlobBackendFS, BlobBackendS3, cfg.BlobBackend)
	}

	cfg.BlobDir = getEnvString("BLOB_DIR", "./blobs")
	cfg.BlobPublicURL = getEnvString("BLOB_PUBLIC_URL", cfg.BaseURL+"/blobs")

	if cfg.BlobBackend == BlobBackendS3 {
		cfg.S3Endpoint = os.Getenv("S3_ENDPOINT")
		cfg.S3AccessKey = os.Getenv("S3_ACCESS_KEY")
		cfg.S3SecretKey = os.Getenv("S3_SECRET_KEY")
		cfg.S3Bucket = os.Getenv("S3_BUCKET")
		cfg.S3UseSSL = getEnvBool("S3_USE_SSL", true)

		var s3Missing []string
		if cfg.S3Endpoint == "" {
			s3Missing = append(s3Missing, "S3_ENDPOINT")
		}
		if cfg.S3AccessKey == "" {
			s3Missing = append(s3Missing, "S3_ACCESS_KEY")
		}
		if cfg.S3SecretKey == "" {
			s3Missing = append(s3Missing, "S3_SECRET_KEY")
		}
		if cfg.S3Bucket == "" {
			s3Missing = append(s3Missing, "S3_BUCKET")
		}
		if len(s3Missing) > 0 {
			return nil, fmt.Errorf("BLOB_BACKEND=s3 requires environment variables: %v", s3Missing)
		}
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
