// Package auth はアルバムのパスワード認証とセッション発行を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/albumbox/internal/model"
	"github.com/hitoshi/albumbox/internal/repository"
)

// 認証アクション種別。
const (
	ActionLogin  = "login"
	ActionCreate = "create"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
	BcryptCost    int // bcryptワークファクタ
}

// Service は認証に関するビジネスロジックを提供する。
// セッションの作成はこのサービスのみが行う。
type Service struct {
	albumRepo   repository.AlbumRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	albumRepo repository.AlbumRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		albumRepo:   albumRepo,
		sessionRepo: sessionRepo,
		config:      config,
	}
}

// Authenticate はアルバム名とパスワードで認証し、セッションを発行する。
//
// action=loginは既存アルバムへのログイン。アルバムが存在しなければ
// ALBUM_NOT_FOUND、パスワード不一致ならINVALID_PASSWORDを返す。
// action=createは新規アルバム作成。名前が既に使われていれば
// ALBUM_NAME_TAKENを返す。
// 発行されたセッションはclientIPに束縛される。
func (s *Service) Authenticate(ctx context.Context, name, password, action, clientIP string) (*model.Session, error) {
	if name == "" {
		return nil, model.NewInvalidRequestError("nameは必須です")
	}
	if password == "" {
		return nil, model.NewInvalidRequestError("passwordは必須です")
	}

	switch action {
	case ActionLogin:
		return s.login(ctx, name, password, clientIP)
	case ActionCreate:
		return s.create(ctx, name, password, clientIP)
	default:
		return nil, model.NewInvalidActionError(action)
	}
}

// login は既存アルバムのパスワードを検証しセッションを発行する。
func (s *Service) login(ctx context.Context, name, password, clientIP string) (*model.Session, error) {
	album, err := s.albumRepo.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to find album: %w", err)
	}
	if album == nil {
		return nil, model.NewAlbumNotFoundError(name)
	}

	// bcryptの比較は定数時間。タイミングでダイジェストを推測されることはない。
	if err := bcrypt.CompareHashAndPassword([]byte(album.PasswordHash), []byte(password)); err != nil {
		slog.Warn("login failed: password mismatch",
			slog.String("album_name", name),
			slog.String("client_ip", clientIP),
		)
		return nil, model.NewInvalidPasswordError()
	}

	session, err := s.createSession(ctx, album.ID, clientIP)
	if err != nil {
		return nil, err
	}

	slog.Info("album login",
		slog.String("album_id", album.ID),
		slog.String("client_ip", clientIP),
	)
	return session, nil
}

// create は新規アルバムを作成しセッションを発行する。
func (s *Service) create(ctx context.Context, name, password, clientIP string) (*model.Session, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	album := &model.Album{
		ID:           uuid.New().String(),
		Name:         name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}

	if err := s.albumRepo.Create(ctx, album); err != nil {
		if errors.Is(err, repository.ErrDuplicateAlbumName) {
			return nil, model.NewAlbumNameTakenError(name)
		}
		return nil, fmt.Errorf("failed to create album: %w", err)
	}

	session, err := s.createSession(ctx, album.ID, clientIP)
	if err != nil {
		return nil, err
	}

	slog.Info("album created",
		slog.String("album_id", album.ID),
		slog.String("album_name", name),
	)
	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("session token is required")
	}

	if err := s.sessionRepo.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// createSession はセッションを作成し永続化する。
// 繰り返しログインしても既存セッションは消さない（複数同時セッションを許可）。
func (s *Service) createSession(ctx context.Context, albumID, clientIP string) (*model.Session, error) {
	token, err := generateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		Token:     token,
		AlbumID:   albumID,
		IPAddress: clientIP,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionToken は暗号的に安全なセッショントークンを生成する。
// 32バイトの乱数をhexエンコードした64文字の文字列。
func generateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
