// Package facematch は顔エンコーディングによる本人照合を提供する。
// 登録済みエンコーディングのキャッシュと距離比較によるマッチャーを含む。
package facematch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Dyniee/metro-facecheck/internal/model"
	"github.com/Dyniee/metro-facecheck/internal/repository"
)

// Entry は登録済み利用者1人分のエンコーディング。
type Entry struct {
	IdentityID string
	Encoding   []float64
}

// snapshot は登録キャッシュの不変スナップショット。
// 再構築時は新しいスナップショットを丸ごと差し替え、既存の参照は変更しない。
type snapshot struct {
	entries []Entry
}

// EnrollmentCache は登録済みエンコーディングのメモリキャッシュ。
// 入場判定のたびにDBを読まず、登録イベント時のみ全件再構築する。
// 読み取りはロックフリーで、再構築と同時に行われても一貫した
// スナップショットを参照する。
type EnrollmentCache struct {
	repo    repository.EncodingRepository
	logger  *slog.Logger
	current atomic.Pointer[snapshot]

	// reloadHook は再構築成功時にエントリ数を通知する（メトリクス用）。
	reloadHook func(count int)
}

// NewEnrollmentCache はEnrollmentCache の新しいインスタンスを生成する。
// 使用前にReloadで初期化すること。
func NewEnrollmentCache(repo repository.EncodingRepository, logger *slog.Logger) *EnrollmentCache {
	c := &EnrollmentCache{repo: repo, logger: logger}
	c.current.Store(&snapshot{})
	return c
}

// Reload はDBから全エンコーディングを読み直してキャッシュを再構築する。
// 部分更新はせず、常に全件置き換える。失敗時は既存のスナップショットを維持する。
func (c *EnrollmentCache) Reload(ctx context.Context) error {
	encodings, err := c.repo.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("登録キャッシュの再構築に失敗しました: %w", err)
	}

	entries := make([]Entry, 0, len(encodings))
	for _, enc := range encodings {
		// 次元不一致のエンコーディングは距離計算できないため除外する
		if len(enc.Encoding) != model.EncodingDimensions {
			c.logger.Warn("次元数が不正なエンコーディングをスキップします",
				slog.String("identity_id", enc.IdentityID),
				slog.Int("dimensions", len(enc.Encoding)),
			)
			continue
		}
		entries = append(entries, Entry{
			IdentityID: enc.IdentityID,
			Encoding:   enc.Encoding,
		})
	}

	c.current.Store(&snapshot{entries: entries})
	c.logger.Info("登録キャッシュを再構築しました",
		slog.Int("entry_count", len(entries)),
	)
	if c.reloadHook != nil {
		c.reloadHook(len(entries))
	}
	return nil
}

// SetReloadHook は再構築成功時に呼ばれるフックを設定する。
// Reloadと並行して呼ばないこと。
func (c *EnrollmentCache) SetReloadHook(hook func(count int)) {
	c.reloadHook = hook
}

// Entries は現在のスナップショットのエントリを返す。
// 返り値は不変として扱うこと。順序はidentity_id昇順（リポジトリの契約）。
func (c *EnrollmentCache) Entries() []Entry {
	return c.current.Load().entries
}

// Len は現在のエントリ数を返す。
func (c *EnrollmentCache) Len() int {
	return len(c.current.Load().entries)
}
