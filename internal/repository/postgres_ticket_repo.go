package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Dyniee/metro-facecheck/internal/model"
)

// PostgresTicketRepo はPostgreSQLを使用したきっぷリポジトリ。
type PostgresTicketRepo struct {
	db *sql.DB
}

// NewPostgresTicketRepo はPostgresTicketRepoを生成する。
func NewPostgresTicketRepo(db *sql.DB) *PostgresTicketRepo {
	return &PostgresTicketRepo{db: db}
}

const ticketColumns = `id, identity_id, kind, status, purchase_price, purchase_time,
	valid_from, from_station, to_station, expected_departure, trip_code`

func scanTickets(rows *sql.Rows) ([]*model.Ticket, error) {
	var tickets []*model.Ticket
	for rows.Next() {
		t := &model.Ticket{}
		var expectedDeparture sql.NullTime
		if err := rows.Scan(
			&t.ID, &t.IdentityID, &t.Kind, &t.Status,
			&t.PurchasePrice, &t.PurchaseTime, &t.ValidFrom,
			&t.FromStation, &t.ToStation, &expectedDeparture, &t.TripCode,
		); err != nil {
			return nil, fmt.Errorf("きっぷの読み取りに失敗しました: %w", err)
		}
		if expectedDeparture.Valid {
			t.ExpectedDeparture = &expectedDeparture.Time
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("きっぷ一覧の走査に失敗しました: %w", err)
	}
	return tickets, nil
}

// Create はきっぷを作成する。購入トランザクション内で呼び出す。
func (r *PostgresTicketRepo) Create(ctx context.Context, tx DBTX, ticket *model.Ticket) error {
	var expectedDeparture interface{}
	if ticket.ExpectedDeparture != nil {
		expectedDeparture = *ticket.ExpectedDeparture
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO tickets (id, identity_id, kind, status, purchase_price, purchase_time,
		                      valid_from, from_station, to_station, expected_departure, trip_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		ticket.ID, ticket.IdentityID, ticket.Kind, ticket.Status,
		ticket.PurchasePrice, ticket.PurchaseTime, ticket.ValidFrom,
		ticket.FromStation, ticket.ToStation, expectedDeparture, ticket.TripCode,
	)
	if err != nil {
		return fmt.Errorf("きっぷの作成に失敗しました: %w", err)
	}
	return nil
}

// ListNewForUpdate は指定利用者のNEWきっぷをFOR UPDATEでロックして返す。
// kindはCHECK制約で'monthly'と'single'のみが入り、辞書順でmonthly < singleと
// なるため、kind昇順で定期券が先に評価される。同種別内は購入時刻昇順。
// 同一利用者の2つの同時入場試行はこのロックで直列化され、同じ片道きっぷで
// 両方が入場することはない。
func (r *PostgresTicketRepo) ListNewForUpdate(ctx context.Context, tx DBTX, identityID string) ([]*model.Ticket, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets
		 WHERE identity_id = $1 AND status = 'NEW'
		 ORDER BY kind ASC, purchase_time ASC
		 FOR UPDATE`,
		identityID,
	)
	if err != nil {
		return nil, fmt.Errorf("NEWきっぷの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanTickets(rows)
}

// MarkUsed はきっぷをNEWからUSEDに遷移させる。
// WHERE句でstatus = 'NEW'を条件にすることで、既にUSEDの行が再度
// 消費されることを防ぐ。更新件数0の場合はエラーを返す。
func (r *PostgresTicketRepo) MarkUsed(ctx context.Context, tx DBTX, ticketID string) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE tickets SET status = 'USED' WHERE id = $1 AND status = 'NEW'`,
		ticketID,
	)
	if err != nil {
		return fmt.Errorf("きっぷの使用済み遷移に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("きっぷが既に使用済みか存在しません: %s", ticketID)
	}
	return nil
}

// HasActiveMonthly は有効期間内のNEW定期券の有無を返す。
// valid_fromがvalidDays日前より後（= まだ有効）のNEW定期券を数える。
func (r *PostgresTicketRepo) HasActiveMonthly(ctx context.Context, tx DBTX, identityID string, validDays int, now time.Time) (bool, error) {
	var count int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tickets
		 WHERE identity_id = $1 AND kind = 'monthly' AND status = 'NEW'
		   AND valid_from > ($2::date - $3::integer)`,
		identityID, now, validDays,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("定期券の確認に失敗しました: %w", err)
	}
	return count > 0, nil
}

// ListByIdentity は利用者の全きっぷを購入時刻降順で返す。
func (r *PostgresTicketRepo) ListByIdentity(ctx context.Context, identityID string) ([]*model.Ticket, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM tickets
		 WHERE identity_id = $1
		 ORDER BY purchase_time DESC`,
		identityID,
	)
	if err != nil {
		return nil, fmt.Errorf("きっぷ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	return scanTickets(rows)
}

// compile-time interface check
var _ TicketRepository = (*PostgresTicketRepo)(nil)
