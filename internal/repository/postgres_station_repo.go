package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dyniee/metro-facecheck/internal/model"
)

// PostgresStationRepo はPostgreSQLを使用した駅リポジトリ。
type PostgresStationRepo struct {
	db *sql.DB
}

// NewPostgresStationRepo はPostgresStationRepoを生成する。
func NewPostgresStationRepo(db *sql.DB) *PostgresStationRepo {
	return &PostgresStationRepo{db: db}
}

// List は全駅をID昇順（= 路線順）で返す。
func (r *PostgresStationRepo) List(ctx context.Context) ([]*model.Station, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name FROM stations ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("駅一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var stations []*model.Station
	for rows.Next() {
		s := &model.Station{}
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("駅の読み取りに失敗しました: %w", err)
		}
		stations = append(stations, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("駅一覧の走査に失敗しました: %w", err)
	}

	return stations, nil
}

// ExistsByName は指定名の駅が存在するかを返す。駅名は完全一致で照合する。
func (r *PostgresStationRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM stations WHERE name = $1)`,
		name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("駅の確認に失敗しました: %w", err)
	}
	return exists, nil
}

// compile-time interface check
var _ StationRepository = (*PostgresStationRepo)(nil)
