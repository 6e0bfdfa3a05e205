// Package cleanup はセッションとブロブの自動整理ジョブを提供する。
// 期限切れセッションの削除と、photos行から参照されなくなった孤児ブロブの
// 照合スイープを日次バッチで行う。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/albumbox/internal/blob"
)

// defaultOrphanGrace は孤児判定の猶予期間。
// アップロード直後（ブロブは書けたが行はまだ）のブロブを誤って消さないよう、
// この期間より新しいブロブはスイープ対象にしない。
const defaultOrphanGrace = 24 * time.Hour

// SessionPurger は期限切れセッション削除のインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// BlobURLLister は参照中のブロブURL列挙のインターフェース。
// repository.PhotoRepositoryの部分集合として定義する。
type BlobURLLister interface {
	ListAllBlobURLs(ctx context.Context) ([]string, error)
}

// MetricsRecorder はクリーンアップ結果のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordSessionsPurged(count int64)
	RecordOrphanedBlob()
}

// CleanupJob はセッションとブロブの自動整理ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	sessions    SessionPurger
	photos      BlobURLLister
	blobs       blob.Store
	logger      *slog.Logger
	metrics     MetricsRecorder
	OrphanGrace time.Duration // 孤児判定の猶予期間（デフォルト: 24時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。metricsはnilでもよい。
func NewCleanupJob(sessions SessionPurger, photos BlobURLLister, blobs blob.Store, logger *slog.Logger, metrics MetricsRecorder) *CleanupJob {
	return &CleanupJob{
		sessions:    sessions,
		photos:      photos,
		blobs:       blobs,
		logger:      logger,
		metrics:     metrics,
		OrphanGrace: defaultOrphanGrace,
	}
}

// Run はクリーンアップを1回実行する。
// 期限切れセッションの削除とブロブの照合スイープを順に行う。
// どちらかが失敗しても他方は実行し、最初のエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sessErr := j.purgeSessions(ctx)
	sweepErr := j.sweepOrphanedBlobs(ctx)

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	if sessErr != nil {
		return sessErr
	}
	return sweepErr
}

// purgeSessions は期限切れセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) purgeSessions(ctx context.Context) error {
	purged, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("期限切れセッションの削除に失敗: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordSessionsPurged(purged)
	}
	j.logger.Info("期限切れセッションを削除しました",
		slog.Int64("purged_count", purged),
	)
	return nil
}

// sweepOrphanedBlobs はphotos行から参照されていないブロブを削除する。
// OrphanGraceより新しいブロブはアップロード進行中の可能性があるため残す。
// 逆方向の不整合（行はあるがブロブがない）は削除せずログで顕在化させる。
func (j *CleanupJob) sweepOrphanedBlobs(ctx context.Context) error {
	stored, err := j.blobs.List(ctx)
	if err != nil {
		j.logger.Error("ブロブ一覧の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("ブロブ一覧の取得に失敗: %w", err)
	}

	urls, err := j.photos.ListAllBlobURLs(ctx)
	if err != nil {
		j.logger.Error("参照中ブロブURLの取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("参照中ブロブURLの取得に失敗: %w", err)
	}

	referenced := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		key, err := blob.KeyFromURL(u)
		if err != nil {
			continue
		}
		referenced[key] = struct{}{}
	}

	cutoff := time.Now().Add(-j.OrphanGrace)
	var swept int

	for _, info := range stored {
		if _, ok := referenced[info.Key]; ok {
			delete(referenced, info.Key)
			continue
		}
		if info.LastModified.After(cutoff) {
			// アップロード進行中かもしれないので次回に回す
			continue
		}

		if err := j.blobs.Delete(ctx, info.Key); err != nil {
			j.logger.Error("孤児ブロブの削除に失敗しました",
				slog.String("orphan_key", info.Key),
				slog.String("error", err.Error()),
			)
			continue
		}
		if j.metrics != nil {
			j.metrics.RecordOrphanedBlob()
		}
		swept++
	}

	// ここに残っているキーは行だけあってブロブがない欠損
	for key := range referenced {
		j.logger.Warn("ブロブ実体のない写真行を検出しました",
			slog.String("missing_key", key),
		)
	}

	j.logger.Info("ブロブ照合スイープが完了しました",
		slog.Int("swept_count", swept),
		slog.Int("stored_count", len(stored)),
	)
	return nil
}

// RunLoop は指定間隔でRunを繰り返す。コンテキストのキャンセルで停止する。
// 起動直後に1回実行してから周期実行に入る。
func (j *CleanupJob) RunLoop(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("クリーンアップジョブが失敗しました",
			slog.String("error", err.Error()),
		)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップジョブが失敗しました",
					slog.String("error", err.Error()),
				)
			}
		case <-ctx.Done():
			return
		}
	}
}
