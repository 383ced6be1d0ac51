// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Dyniee/metro-facecheck/internal/model"
)

// DBTX は*sql.DBと*sql.Txの共通インターフェース。
// 入場判定・購入のようにトランザクション内で実行する操作は、
// 呼び出し側が開始したトランザクションをこの型で受け取る。
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Tx はトランザクションの操作インターフェース。テストでモックに差し替える。
type Tx interface {
	DBTX
	Commit() error
	Rollback() error
}

// DB はトランザクション開始とトランザクション外の実行の両方を提供する。
type DB interface {
	DBTX
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)
}

// SQLDB は*sql.DBをDBインターフェースに適合させるアダプタ。
type SQLDB struct {
	*sql.DB
}

// BeginTx はトランザクションを開始する。
func (d SQLDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	return d.DB.BeginTx(ctx, opts)
}

// compile-time interface check
var _ DB = SQLDB{}

// IdentityRepository は利用者データの永続化インターフェース。
type IdentityRepository interface {
	// FindByID は指定IDの利用者を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Identity, error)

	// Create は利用者を作成する。
	Create(ctx context.Context, identity *model.Identity) error

	// LockByID は指定IDの利用者行をFOR UPDATEでロックして取得する。
	// 同一利用者の同時入場・同時購入を直列化するために使用する。
	// 見つからない場合はnilを返す。
	LockByID(ctx context.Context, tx DBTX, id string) (*model.Identity, error)

	// UpdateBalance は利用者の残高を加算する（負値で減算）。
	// LockByIDでロック済みのトランザクション内で呼び出すこと。
	UpdateBalance(ctx context.Context, tx DBTX, id string, delta int64) error
}

// EncodingRepository は顔エンコーディングの永続化インターフェース。
type EncodingRepository interface {
	// ListAll は全利用者のエンコーディングをidentity_id昇順で返す。
	// 登録キャッシュの全件再構築に使用する。順序はマッチャーの
	// 同距離タイブレークを決定的にするための契約。
	ListAll(ctx context.Context) ([]*model.FaceEncoding, error)

	// Replace は利用者のエンコーディングを行ごと置き換える。
	// 既存行があれば破棄して新しい行を書き込む（部分更新はしない）。
	Replace(ctx context.Context, enc *model.FaceEncoding) error
}

// TicketRepository はきっぷデータの永続化インターフェース。
type TicketRepository interface {
	// Create はきっぷを作成する。購入トランザクション内で呼び出す。
	Create(ctx context.Context, tx DBTX, ticket *model.Ticket) error

	// ListNewForUpdate は指定利用者のNEWきっぷをFOR UPDATEでロックして返す。
	// 順序は定期券優先（kind昇順: monthly < single）、同種別内は購入時刻昇順。
	// この順序は適格性判定の候補評価順の契約。
	ListNewForUpdate(ctx context.Context, tx DBTX, identityID string) ([]*model.Ticket, error)

	// MarkUsed はきっぷをNEWからUSEDに遷移させる。
	// 既にUSEDの行は更新されず、その場合はエラーを返す（単回使用の保証）。
	MarkUsed(ctx context.Context, tx DBTX, ticketID string) error

	// HasActiveMonthly は有効期間内（validDays日以内に開始）のNEW定期券の
	// 有無を返す。購入前の重複チェックに使用する。
	HasActiveMonthly(ctx context.Context, tx DBTX, identityID string, validDays int, now time.Time) (bool, error)

	// ListByIdentity は利用者の全きっぷを購入時刻降順で返す。
	ListByIdentity(ctx context.Context, identityID string) ([]*model.Ticket, error)
}

// CheckinRepository は入場監査レコードの永続化インターフェース。
// レコードは追記専用で、更新・削除のメソッドは提供しない。
type CheckinRepository interface {
	// Insert は監査レコードを書き込む。
	// トランザクション内・外のどちらからでも呼び出せる。
	Insert(ctx context.Context, tx DBTX, checkin *model.Checkin) error

	// FindLastSuccess は指定利用者の直近の成功レコードを全駅横断で返す。
	// 見つからない場合はnilを返す。リプレイガードが参照するため、
	// 入場トランザクション内で呼び出して一貫した読み取りを保証すること。
	FindLastSuccess(ctx context.Context, tx DBTX, identityID string) (*model.Checkin, error)

	// ListByStation は指定駅の成功レコードを新しい順に返す。
	ListByStation(ctx context.Context, station string, limit int) ([]*model.Checkin, error)

	// DeleteOlderThan は保持期間を超えたレコードを削除し、削除件数を返す。
	// 保守ワーカーからのみ呼び出す。
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

// StationRepository は駅データの永続化インターフェース。
type StationRepository interface {
	// List は全駅をID昇順で返す。
	List(ctx context.Context) ([]*model.Station, error)

	// ExistsByName は指定名の駅が存在するかを返す。
	// 駅名は完全一致で照合する。
	ExistsByName(ctx context.Context, name string) (bool, error)
}

// WalletRepository はウォレット取引履歴の永続化インターフェース。
type WalletRepository interface {
	// InsertTransaction は取引レコードを書き込む。
	InsertTransaction(ctx context.Context, tx DBTX, wtx *model.WalletTransaction) error

	// ListByIdentity は利用者の取引履歴を新しい順に返す。
	ListByIdentity(ctx context.Context, identityID string) ([]*model.WalletTransaction, error)
}
