// Package cleanup は入場監査レコードの自動削除ジョブを提供する。
// 保持期間（デフォルト90日）を超過した監査レコードを日次バッチで削除する。
// きっぷ・ウォレットのデータには一切触れない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dyniee/metro-facecheck/internal/repository"
)

// CleanupJob は保持期間を超過した監査レコードの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	checkins      repository.CheckinRepository
	logger        *slog.Logger
	RetentionDays int // 監査レコードの保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は90日。運用側はAUDIT_RETENTION_DAYSで上書きできる。
func NewCleanupJob(checkins repository.CheckinRepository, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		checkins:      checkins,
		logger:        logger,
		RetentionDays: 90,
	}
}

// Run は保持期間を超過した監査レコードを削除する。
// checkin_timeがRetentionDays日前より古いレコードをDELETEする。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.checkins.DeleteOlderThan(ctx, j.RetentionDays)
	if err != nil {
		j.logger.Error("監査レコードクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("監査レコードクリーンアップの実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("監査レコードクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
