// Package model はドメインモデルを定義する。
package model

import "time"

// TicketKind はきっぷの種別を表す。
type TicketKind string

const (
	// TicketKindSingle は片道きっぷ。一度の入場で消費される。
	TicketKindSingle TicketKind = "single"
	// TicketKindMonthly は定期券。有効開始日から30日間、駅を問わず繰り返し利用できる。
	TicketKindMonthly TicketKind = "monthly"
)

// TicketStatus はきっぷの状態を表す。
// NEW → USED の一方向にのみ遷移し、USEDから戻ることはない。
type TicketStatus string

const (
	// TicketStatusNew は未使用状態。
	TicketStatusNew TicketStatus = "NEW"
	// TicketStatusUsed は使用済み状態。片道きっぷのみがこの状態に遷移する。
	TicketStatusUsed TicketStatus = "USED"
)

// Ticket は購入済みの乗車権を表す。
//   - single: 乗車駅・降車駅・有効日・乗車予定時刻を持つ。
//   - monthly: 有効開始日（ValidFrom）から30日間のローリングウィンドウ。
//     乗車駅・降車駅はデフォルト表示用で、入場判定には使用しない。
type Ticket struct {
	ID                string
	IdentityID        string
	Kind              TicketKind
	Status            TicketStatus
	PurchasePrice     int64
	PurchaseTime      time.Time
	ValidFrom         time.Time // 日付部分のみ意味を持つ
	FromStation       string
	ToStation         string
	ExpectedDeparture *time.Time // singleのみ。nilの場合は時刻制限なし
	TripCode          string
}

// WalletTransactionKind はウォレット取引の種別を表す。
type WalletTransactionKind string

const (
	// WalletTransactionTopUp は残高チャージ。
	WalletTransactionTopUp WalletTransactionKind = "top-up"
	// WalletTransactionPurchase はきっぷ購入による引き落とし。
	WalletTransactionPurchase WalletTransactionKind = "purchase"
)

// WalletTransaction はウォレットの取引履歴を表す。
// 購入時のamountは負値で記録する。
type WalletTransaction struct {
	ID              string
	IdentityID      string
	Amount          int64
	Kind            WalletTransactionKind
	TicketID        *string
	TransactionTime time.Time
}
