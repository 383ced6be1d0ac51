package checkin

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Dyniee/metro-facecheck/internal/facematch"
	"github.com/Dyniee/metro-facecheck/internal/liveness"
	"github.com/Dyniee/metro-facecheck/internal/model"
	"github.com/Dyniee/metro-facecheck/internal/repository"
	"github.com/Dyniee/metro-facecheck/internal/vision"
)

// MetricsRecorder は入場判定の観測値を記録するインターフェース。
type MetricsRecorder interface {
	// RecordOutcome は判定結果を理由コード別に記録する。
	RecordOutcome(reason string, admitted bool)
}

// noopRecorder はメトリクス未設定時のレコーダー。
type noopRecorder struct{}

func (noopRecorder) RecordOutcome(reason string, admitted bool) {}

// Config は入場判定サービスのパラメータ。
type Config struct {
	Cooldown         time.Duration
	DepartureGrace   time.Duration
	MonthlyValidDays int
}

// Service は入場判定パイプラインのオーケストレーター。
// 生体らしさ → 本人照合 → リプレイガード → 適格性判定の順で実行し、
// 成否を問わず1回の実行につき必ず1件の監査レコードを書き込む。
type Service struct {
	db        repository.DB
	provider  vision.Provider
	evaluator *liveness.Evaluator
	matcher   *facematch.Matcher
	identities repository.IdentityRepository
	tickets    repository.TicketRepository
	checkins   repository.CheckinRepository
	metrics    MetricsRecorder
	logger     *slog.Logger
	cfg        Config

	// now はテストで時刻を固定するために差し替え可能にしている
	now func() time.Time
}

// NewService はService の新しいインスタンスを生成する。
// metricsはnilでもよい（記録しない）。
func NewService(
	db repository.DB,
	provider vision.Provider,
	evaluator *liveness.Evaluator,
	matcher *facematch.Matcher,
	identities repository.IdentityRepository,
	tickets repository.TicketRepository,
	checkins repository.CheckinRepository,
	metrics MetricsRecorder,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if metrics == nil {
		metrics = noopRecorder{}
	}
	return &Service{
		db:         db,
		provider:   provider,
		evaluator:  evaluator,
		matcher:    matcher,
		identities: identities,
		tickets:    tickets,
		checkins:   checkins,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Checkin は1回の入場試行を判定する。
// 判定結果は常にOutcomeで返し、内部エラーもerror理由の拒否に変換する
// （ゲートは止めない）。駅名は呼び出し側で検証済みであること。
func (s *Service) Checkin(ctx context.Context, station, imageB64 string) model.Outcome {
	outcome := s.run(ctx, station, imageB64)

	s.metrics.RecordOutcome(outcome.Reason, outcome.Admitted)
	s.logger.Info("入場判定が完了しました",
		slog.String("station", station),
		slog.Bool("admitted", outcome.Admitted),
		slog.String("reason", outcome.Reason),
	)
	return outcome
}

func (s *Service) run(ctx context.Context, station, imageB64 string) model.Outcome {
	now := s.now()

	// ステージ1: 生体らしさ判定
	landmarks, err := s.provider.Landmarks(ctx, imageB64)
	if err != nil {
		return s.denyForProviderError(ctx, station, now, err)
	}
	if lv := s.evaluator.Evaluate(landmarks); !lv.Alive {
		return s.denyBeforeIdentity(ctx, station, now, lv.Reason)
	}

	// ステージ2: 本人照合
	probe, err := s.provider.Encode(ctx, imageB64)
	if err != nil {
		return s.denyForProviderError(ctx, station, now, err)
	}
	if probe == nil {
		return s.denyBeforeIdentity(ctx, station, now, model.ReasonNoFaceEncoding)
	}
	match := s.matcher.Match(probe)
	if !match.Matched {
		return s.denyBeforeIdentity(ctx, station, now, match.Reason)
	}

	// ステージ3: リプレイガードと適格性判定（単一トランザクション）
	outcome, err := s.resolveInTx(ctx, station, match.IdentityID, now)
	if err != nil {
		s.logger.Error("入場判定トランザクションに失敗しました",
			slog.String("station", station),
			slog.String("identity_id", match.IdentityID),
			slog.String("error", err.Error()),
		)
		// トランザクション内の監査書き込みはロールバックされているため、
		// 失敗の監査レコードをトランザクション外で書き直す
		return s.denyForIdentityFailure(ctx, station, match.IdentityID, now, model.ReasonError)
	}
	return outcome
}

// resolveInTx はリプレイガード・適格性判定・きっぷ消費・監査書き込みを
// 単一トランザクションで実行する。
//
// まず利用者行をFOR UPDATEでロックして同一利用者の試行を直列化する。
// きっぷを1枚も持たない利用者でも、このロックによりリプレイガードが
// 未コミットの成功レコードを見落とさない。その後きっぷ行をロックする。
func (s *Service) resolveInTx(ctx context.Context, station, identityID string, now time.Time) (model.Outcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Outcome{}, err
	}
	defer tx.Rollback()

	identity, err := s.identities.LockByID(ctx, tx, identityID)
	if err != nil {
		return model.Outcome{}, err
	}
	if identity == nil {
		// 顔は一致したが利用者レコードが存在しない（整合性異常）。
		// 存在しない利用者IDは監査レコードに書けないため本人特定前扱い。
		outcome := model.Denied(model.ReasonUserNotFound, model.OutcomeMessage(model.ReasonUserNotFound))
		if err := s.writeAudit(ctx, tx, station, now, outcome); err != nil {
			return model.Outcome{}, err
		}
		return outcome, tx.Commit()
	}

	last, err := s.checkins.FindLastSuccess(ctx, tx, identityID)
	if err != nil {
		return model.Outcome{}, err
	}
	if denied, elapsed := replayDenied(last, now, s.cfg.Cooldown); denied {
		outcome := model.DeniedForIdentity(
			model.ReasonRapidCheckinDenied,
			model.RapidCheckinMessage(last.Station, elapsed),
			identityID,
		)
		if err := s.writeAudit(ctx, tx, station, now, outcome); err != nil {
			return model.Outcome{}, err
		}
		return outcome, tx.Commit()
	}

	candidates, err := s.tickets.ListNewForUpdate(ctx, tx, identityID)
	if err != nil {
		return model.Outcome{}, err
	}

	decision := resolveEligibility(candidates, station, now, resolverConfig{
		departureGrace:   s.cfg.DepartureGrace,
		monthlyValidDays: s.cfg.MonthlyValidDays,
	})

	var outcome model.Outcome
	if decision.Admitted {
		// 片道きっぷは消費する。定期券はNEWのまま。
		if decision.Ticket.Kind == model.TicketKindSingle {
			if err := s.tickets.MarkUsed(ctx, tx, decision.Ticket.ID); err != nil {
				return model.Outcome{}, err
			}
		}
		outcome = model.Admit(decision.Reason, decision.Message, identityID, decision.Ticket.ID)
	} else {
		outcome = model.DeniedForIdentity(decision.Reason, decision.Message, identityID)
	}

	if err := s.writeAudit(ctx, tx, station, now, outcome); err != nil {
		return model.Outcome{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Outcome{}, err
	}
	return outcome, nil
}

// denyForProviderError はプロバイダ呼び出し失敗を拒否結果に変換する。
func (s *Service) denyForProviderError(ctx context.Context, station string, now time.Time, err error) model.Outcome {
	reason := model.ReasonError
	if errors.Is(err, vision.ErrProviderTimeout) {
		reason = model.ReasonProviderTimeout
	} else {
		s.logger.Error("顔認証プロバイダの呼び出しに失敗しました",
			slog.String("station", station),
			slog.String("error", err.Error()),
		)
	}
	return s.denyBeforeIdentity(ctx, station, now, reason)
}

// denyBeforeIdentity は本人特定前の拒否を監査レコード付きで返す。
func (s *Service) denyBeforeIdentity(ctx context.Context, station string, now time.Time, reason string) model.Outcome {
	outcome := model.Denied(reason, model.OutcomeMessage(reason))
	s.auditOutsideTx(ctx, station, now, outcome)
	return outcome
}

// denyForIdentityFailure は本人特定後の内部エラーによる拒否を返す。
func (s *Service) denyForIdentityFailure(ctx context.Context, station, identityID string, now time.Time, reason string) model.Outcome {
	outcome := model.DeniedForIdentity(reason, model.OutcomeMessage(reason), identityID)
	s.auditOutsideTx(ctx, station, now, outcome)
	return outcome
}

// auditOutsideTx はトランザクション外で監査レコードを書き込む。
// 監査の書き込み失敗で判定自体は変えない（ログのみ）。
func (s *Service) auditOutsideTx(ctx context.Context, station string, now time.Time, outcome model.Outcome) {
	if err := s.writeAudit(ctx, s.db, station, now, outcome); err != nil {
		s.logger.Error("監査レコードの書き込みに失敗しました",
			slog.String("station", station),
			slog.String("reason", outcome.Reason),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) writeAudit(ctx context.Context, tx repository.DBTX, station string, now time.Time, outcome model.Outcome) error {
	return s.checkins.Insert(ctx, tx, &model.Checkin{
		ID:          uuid.New().String(),
		IdentityID:  outcome.IdentityID,
		TicketID:    outcome.TicketID,
		Station:     station,
		CheckinTime: now,
		Success:     outcome.Admitted,
	})
}

