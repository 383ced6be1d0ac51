// Package model はドメインモデルを定義する。
package model

import "time"

// RiderType は利用者区分を表す。定期券の価格計算に使用する。
type RiderType string

const (
	// RiderTypeGeneral は一般利用者。
	RiderTypeGeneral RiderType = "general"
	// RiderTypeStudent は学生利用者。定期券が割引価格になる。
	RiderTypeStudent RiderType = "student"
)

// Identity は登録済み利用者を表す。
// 顔エンコーディングとは1対1で紐付き、再登録時はエンコーディングごと置き換えられる。
type Identity struct {
	ID        string
	Username  string
	Email     string
	Phone     string
	RiderType RiderType
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FaceEncoding は利用者の顔エンコーディングを表す。
// 128次元の数値ベクトルで、距離比較により本人照合を行う。
// 再登録時は部分更新せず、行ごと置き換える（古いエンコーディングは破棄）。
type FaceEncoding struct {
	ID         string
	IdentityID string
	Encoding   []float64
	PhotoPath  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// EncodingDimensions は顔エンコーディングの次元数。
const EncodingDimensions = 128
