// Package model はドメインモデルを定義する。
package model

import "time"

// Checkin は入場試行の監査レコードを表す。
// パイプラインの1回の実行につき必ず1件書き込まれる（成功・失敗を問わず）。
// 本人特定前に失敗した場合はIdentityIDがnilになる。
// 追記専用であり、パイプラインが更新・削除することはない。
type Checkin struct {
	ID          string
	IdentityID  *string
	TicketID    *string
	Station     string
	CheckinTime time.Time
	Success     bool
}

// Station は路線上の駅を表す。
type Station struct {
	ID   int
	Name string
}
