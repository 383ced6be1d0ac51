package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dyniee/metro-facecheck/internal/model"
)

// PostgresWalletRepo はPostgreSQLを使用したウォレット取引履歴リポジトリ。
type PostgresWalletRepo struct {
	db *sql.DB
}

// NewPostgresWalletRepo はPostgresWalletRepoを生成する。
func NewPostgresWalletRepo(db *sql.DB) *PostgresWalletRepo {
	return &PostgresWalletRepo{db: db}
}

// InsertTransaction は取引レコードを書き込む。
// 残高更新と同じトランザクション内で呼び出すこと。
func (r *PostgresWalletRepo) InsertTransaction(ctx context.Context, tx DBTX, wtx *model.WalletTransaction) error {
	var ticketID interface{}
	if wtx.TicketID != nil {
		ticketID = *wtx.TicketID
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO wallet_transactions (id, identity_id, amount, kind, ticket_id, transaction_time)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		wtx.ID, wtx.IdentityID, wtx.Amount, wtx.Kind, ticketID, wtx.TransactionTime,
	)
	if err != nil {
		return fmt.Errorf("取引レコードの書き込みに失敗しました: %w", err)
	}
	return nil
}

// ListByIdentity は利用者の取引履歴を新しい順に返す。
func (r *PostgresWalletRepo) ListByIdentity(ctx context.Context, identityID string) ([]*model.WalletTransaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, identity_id, amount, kind, ticket_id, transaction_time
		 FROM wallet_transactions
		 WHERE identity_id = $1
		 ORDER BY transaction_time DESC`,
		identityID,
	)
	if err != nil {
		return nil, fmt.Errorf("取引履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var txs []*model.WalletTransaction
	for rows.Next() {
		wtx := &model.WalletTransaction{}
		var ticketID sql.NullString
		if err := rows.Scan(
			&wtx.ID, &wtx.IdentityID, &wtx.Amount, &wtx.Kind,
			&ticketID, &wtx.TransactionTime,
		); err != nil {
			return nil, fmt.Errorf("取引レコードの読み取りに失敗しました: %w", err)
		}
		if ticketID.Valid {
			wtx.TicketID = &ticketID.String
		}
		txs = append(txs, wtx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("取引履歴の走査に失敗しました: %w", err)
	}

	return txs, nil
}

// compile-time interface check
var _ WalletRepository = (*PostgresWalletRepo)(nil)
