package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Dyniee/metro-facecheck/internal/model"
)

// PostgresEncodingRepo はPostgreSQLを使用した顔エンコーディングリポジトリ。
// エンコーディングはDOUBLE PRECISION[]カラムに格納し、pq.Float64Arrayで読み書きする。
type PostgresEncodingRepo struct {
	db *sql.DB
}

// NewPostgresEncodingRepo はPostgresEncodingRepoを生成する。
func NewPostgresEncodingRepo(db *sql.DB) *PostgresEncodingRepo {
	return &PostgresEncodingRepo{db: db}
}

// ListAll は全利用者のエンコーディングをidentity_id昇順で返す。
// 順序はマッチャーの同距離タイブレークを決定的にするための契約。
func (r *PostgresEncodingRepo) ListAll(ctx context.Context) ([]*model.FaceEncoding, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, identity_id, encoding, photo_path, created_at, updated_at
		 FROM face_encodings ORDER BY identity_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("顔エンコーディング一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var encodings []*model.FaceEncoding
	for rows.Next() {
		enc := &model.FaceEncoding{}
		var vector pq.Float64Array
		if err := rows.Scan(
			&enc.ID, &enc.IdentityID, &vector, &enc.PhotoPath,
			&enc.CreatedAt, &enc.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("顔エンコーディングの読み取りに失敗しました: %w", err)
		}
		enc.Encoding = []float64(vector)
		encodings = append(encodings, enc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("顔エンコーディング一覧の走査に失敗しました: %w", err)
	}

	return encodings, nil
}

// Replace は利用者のエンコーディングを行ごと置き換える。
// UNIQUE(identity_id)制約を利用したINSERT ON CONFLICTで実装し、
// 再登録時は古いエンコーディングを破棄して全フィールドを上書きする。
func (r *PostgresEncodingRepo) Replace(ctx context.Context, enc *model.FaceEncoding) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO face_encodings (id, identity_id, encoding, photo_path, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (identity_id) DO UPDATE SET
		     encoding = EXCLUDED.encoding,
		     photo_path = EXCLUDED.photo_path,
		     updated_at = EXCLUDED.updated_at`,
		enc.ID, enc.IdentityID, pq.Float64Array(enc.Encoding), enc.PhotoPath,
		enc.CreatedAt, enc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("顔エンコーディングの置き換えに失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ EncodingRepository = (*PostgresEncodingRepo)(nil)
