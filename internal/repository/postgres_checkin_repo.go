package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dyniee/metro-facecheck/internal/model"
)

// PostgresCheckinRepo はPostgreSQLを使用した入場監査レコードリポジトリ。
// checkinsテーブルは追記専用で、UPDATE/DELETEは保守ワーカーの
// 保持期間切れ削除以外では発行しない。
type PostgresCheckinRepo struct {
	db *sql.DB
}

// NewPostgresCheckinRepo はPostgresCheckinRepoを生成する。
func NewPostgresCheckinRepo(db *sql.DB) *PostgresCheckinRepo {
	return &PostgresCheckinRepo{db: db}
}

const checkinColumns = `id, identity_id, ticket_id, station, checkin_time, success`

func scanCheckin(row *sql.Row) (*model.Checkin, error) {
	c := &model.Checkin{}
	var identityID, ticketID sql.NullString
	err := row.Scan(&c.ID, &identityID, &ticketID, &c.Station, &c.CheckinTime, &c.Success)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("入場レコードの取得に失敗しました: %w", err)
	}
	if identityID.Valid {
		c.IdentityID = &identityID.String
	}
	if ticketID.Valid {
		c.TicketID = &ticketID.String
	}
	return c, nil
}

// Insert は監査レコードを書き込む。
// 本人特定前の失敗はidentity_id/ticket_idがNULLのまま記録される。
func (r *PostgresCheckinRepo) Insert(ctx context.Context, tx DBTX, checkin *model.Checkin) error {
	var identityID, ticketID interface{}
	if checkin.IdentityID != nil {
		identityID = *checkin.IdentityID
	}
	if checkin.TicketID != nil {
		ticketID = *checkin.TicketID
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO checkins (id, identity_id, ticket_id, station, checkin_time, success)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		checkin.ID, identityID, ticketID, checkin.Station, checkin.CheckinTime, checkin.Success,
	)
	if err != nil {
		return fmt.Errorf("入場レコードの書き込みに失敗しました: %w", err)
	}
	return nil
}

// FindLastSuccess は指定利用者の直近の成功レコードを全駅横断で返す。
// 見つからない場合はnilを返す。
func (r *PostgresCheckinRepo) FindLastSuccess(ctx context.Context, tx DBTX, identityID string) (*model.Checkin, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+checkinColumns+` FROM checkins
		 WHERE identity_id = $1 AND success = TRUE
		 ORDER BY checkin_time DESC
		 LIMIT 1`,
		identityID,
	)
	return scanCheckin(row)
}

// ListByStation は指定駅の成功レコードを新しい順に返す。
func (r *PostgresCheckinRepo) ListByStation(ctx context.Context, station string, limit int) ([]*model.Checkin, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+checkinColumns+` FROM checkins
		 WHERE station = $1 AND success = TRUE
		 ORDER BY checkin_time DESC
		 LIMIT $2`,
		station, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("入場レコード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var checkins []*model.Checkin
	for rows.Next() {
		c := &model.Checkin{}
		var identityID, ticketID sql.NullString
		if err := rows.Scan(&c.ID, &identityID, &ticketID, &c.Station, &c.CheckinTime, &c.Success); err != nil {
			return nil, fmt.Errorf("入場レコードの読み取りに失敗しました: %w", err)
		}
		if identityID.Valid {
			c.IdentityID = &identityID.String
		}
		if ticketID.Valid {
			c.TicketID = &ticketID.String
		}
		checkins = append(checkins, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("入場レコード一覧の走査に失敗しました: %w", err)
	}

	return checkins, nil
}

// DeleteOlderThan は保持期間を超えた監査レコードを削除し、削除件数を返す。
// 保守ワーカーからのみ呼び出す。
func (r *PostgresCheckinRepo) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM checkins WHERE checkin_time < now() - ($1 || ' days')::interval`,
		days,
	)
	if err != nil {
		return 0, fmt.Errorf("期限切れ入場レコードの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return rowsAffected, nil
}

// compile-time interface check
var _ CheckinRepository = (*PostgresCheckinRepo)(nil)
