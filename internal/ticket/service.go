// Package ticket はきっぷ購入とウォレット管理を提供する。
package ticket

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Dyniee/metro-facecheck/internal/fare"
	"github.com/Dyniee/metro-facecheck/internal/model"
	"github.com/Dyniee/metro-facecheck/internal/repository"
)

// PurchaseRequest はきっぷ購入の入力。
// ValidDateは省略時に当日、DepartureTimeは省略時に時刻制限なし。
type PurchaseRequest struct {
	IdentityID    string
	Kind          model.TicketKind
	FromStation   string
	ToStation     string
	ValidDate     *time.Time
	DepartureTime *time.Time
}

// Service はきっぷ購入とウォレット操作を提供する。
// 購入は利用者行のロック → 残高確認 → きっぷ作成 → 残高引き落とし →
// 取引記録を単一トランザクションで行う。
type Service struct {
	db         repository.DB
	identities repository.IdentityRepository
	tickets    repository.TicketRepository
	wallets    repository.WalletRepository
	logger     *slog.Logger

	monthlyValidDays int

	// now はテストで時刻を固定するために差し替え可能にしている
	now func() time.Time
}

// NewService はService の新しいインスタンスを生成する。
func NewService(
	db repository.DB,
	identities repository.IdentityRepository,
	tickets repository.TicketRepository,
	wallets repository.WalletRepository,
	logger *slog.Logger,
	monthlyValidDays int,
) *Service {
	return &Service{
		db:               db,
		identities:       identities,
		tickets:          tickets,
		wallets:          wallets,
		logger:           logger,
		monthlyValidDays: monthlyValidDays,
		now:              time.Now,
	}
}

// Purchase はきっぷを購入する。
// 残高不足・定期券の重複などの業務エラーは*model.APIErrorで返す。
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest) (*model.Ticket, error) {
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	// 利用者行をロックし、同時購入・同時入場と直列化する
	identity, err := s.identities.LockByID(ctx, tx, req.IdentityID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, model.NewIdentityNotFoundError(req.IdentityID)
	}

	price, err := s.priceFor(ctx, tx, identity, req, now)
	if err != nil {
		return nil, err
	}

	if identity.Balance < price {
		return nil, model.NewInsufficientBalanceError(price, identity.Balance)
	}

	ticket := s.buildTicket(identity, req, price, now)
	if err := s.tickets.Create(ctx, tx, ticket); err != nil {
		return nil, err
	}

	if err := s.identities.UpdateBalance(ctx, tx, identity.ID, -price); err != nil {
		return nil, err
	}
	if err := s.wallets.InsertTransaction(ctx, tx, &model.WalletTransaction{
		ID:              uuid.New().String(),
		IdentityID:      identity.ID,
		Amount:          -price,
		Kind:            model.WalletTransactionPurchase,
		TicketID:        &ticket.ID,
		TransactionTime: now,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("購入トランザクションのコミットに失敗しました: %w", err)
	}

	s.logger.Info("きっぷを発行しました",
		slog.String("ticket_id", ticket.ID),
		slog.String("identity_id", identity.ID),
		slog.String("kind", string(ticket.Kind)),
		slog.Int64("price", price),
	)
	return ticket, nil
}

// priceFor は購入価格を決定し、種別ごとの購入前チェックを行う。
func (s *Service) priceFor(ctx context.Context, tx repository.DBTX, identity *model.Identity, req PurchaseRequest, now time.Time) (int64, error) {
	switch req.Kind {
	case model.TicketKindMonthly:
		// NEW状態の定期券は利用者あたり同時に1枚まで
		exists, err := s.tickets.HasActiveMonthly(ctx, tx, identity.ID, s.monthlyValidDays, now)
		if err != nil {
			return 0, err
		}
		if exists {
			return 0, model.NewActiveMonthlyExistsError()
		}
		return fare.MonthlyPrice(identity.RiderType), nil

	case model.TicketKindSingle:
		price, err := fare.SinglePrice(req.FromStation, req.ToStation)
		if err != nil {
			return 0, model.NewUnknownStationError(req.FromStation + " / " + req.ToStation)
		}
		return price, nil

	default:
		return 0, model.NewInvalidTicketKindError(string(req.Kind))
	}
}

func (s *Service) buildTicket(identity *model.Identity, req PurchaseRequest, price int64, now time.Time) *model.Ticket {
	validFrom := now
	if req.ValidDate != nil {
		validFrom = *req.ValidDate
	}
	return &model.Ticket{
		ID:                uuid.New().String(),
		IdentityID:        identity.ID,
		Kind:              req.Kind,
		Status:            model.TicketStatusNew,
		PurchasePrice:     price,
		PurchaseTime:      now,
		ValidFrom:         validFrom,
		FromStation:       req.FromStation,
		ToStation:         req.ToStation,
		ExpectedDeparture: req.DepartureTime,
		TripCode:          uuid.New().String(),
	}
}

// TopUp はウォレットに残高をチャージし、チャージ後の残高を返す。
func (s *Service) TopUp(ctx context.Context, identityID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, model.NewInvalidAmountError()
	}
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	identity, err := s.identities.LockByID(ctx, tx, identityID)
	if err != nil {
		return 0, err
	}
	if identity == nil {
		return 0, model.NewIdentityNotFoundError(identityID)
	}

	if err := s.identities.UpdateBalance(ctx, tx, identityID, amount); err != nil {
		return 0, err
	}
	if err := s.wallets.InsertTransaction(ctx, tx, &model.WalletTransaction{
		ID:              uuid.New().String(),
		IdentityID:      identityID,
		Amount:          amount,
		Kind:            model.WalletTransactionTopUp,
		TransactionTime: now,
	}); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("チャージトランザクションのコミットに失敗しました: %w", err)
	}

	s.logger.Info("残高をチャージしました",
		slog.String("identity_id", identityID),
		slog.Int64("amount", amount),
	)
	return identity.Balance + amount, nil
}

// ListByIdentity は利用者の購入履歴を返す。
func (s *Service) ListByIdentity(ctx context.Context, identityID string) ([]*model.Ticket, error) {
	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, model.NewIdentityNotFoundError(identityID)
	}
	return s.tickets.ListByIdentity(ctx, identityID)
}
