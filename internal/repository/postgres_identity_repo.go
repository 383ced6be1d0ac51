package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dyniee/metro-facecheck/internal/model"
)

// PostgresIdentityRepo はPostgreSQLを使用した利用者リポジトリ。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

const identityColumns = `id, username, email, phone, rider_type, balance, created_at, updated_at`

func scanIdentity(row *sql.Row) (*model.Identity, error) {
	identity := &model.Identity{}
	err := row.Scan(
		&identity.ID, &identity.Username, &identity.Email, &identity.Phone,
		&identity.RiderType, &identity.Balance,
		&identity.CreatedAt, &identity.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("利用者の取得に失敗しました: %w", err)
	}
	return identity, nil
}

// FindByID は指定IDの利用者を取得する。見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) FindByID(ctx context.Context, id string) (*model.Identity, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`,
		id,
	)
	return scanIdentity(row)
}

// Create は利用者を作成する。
func (r *PostgresIdentityRepo) Create(ctx context.Context, identity *model.Identity) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (id, username, email, phone, rider_type, balance, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		identity.ID, identity.Username, identity.Email, identity.Phone,
		identity.RiderType, identity.Balance,
		identity.CreatedAt, identity.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("利用者の作成に失敗しました: %w", err)
	}
	return nil
}

// LockByID は指定IDの利用者行をFOR UPDATEでロックして取得する。
// 同一利用者の入場試行・購入はこのロックで直列化される。きっぷを
// 1枚も持たない利用者のリプレイガード判定も、このロックにより
// 未コミットの成功レコードを見落とさないことが保証される。
// 見つからない場合はnilを返す。
func (r *PostgresIdentityRepo) LockByID(ctx context.Context, tx DBTX, id string) (*model.Identity, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1 FOR UPDATE`,
		id,
	)
	return scanIdentity(row)
}

// UpdateBalance は利用者の残高を加算する（負値で減算）。
func (r *PostgresIdentityRepo) UpdateBalance(ctx context.Context, tx DBTX, id string, delta int64) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE identities SET balance = balance + $2, updated_at = now() WHERE id = $1`,
		id, delta,
	)
	if err != nil {
		return fmt.Errorf("残高の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("利用者が見つかりません: %s", id)
	}
	return nil
}

// compile-time interface check
var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
