// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
// 入場判定の拒否はエラーではなくOutcomeとして返すため、APIErrorは
// バリデーション・購入・登録系の失敗にのみ使用する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, ticket, enrollment, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest      = "INVALID_REQUEST"
	ErrCodeUnknownStation      = "UNKNOWN_STATION"
	ErrCodeSameStation         = "SAME_STATION"
	ErrCodeInvalidTicketKind   = "INVALID_TICKET_KIND"
	ErrCodeInvalidDeparture    = "INVALID_DEPARTURE"
	ErrCodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	ErrCodeActiveMonthlyExists = "ACTIVE_MONTHLY_EXISTS"
	ErrCodeIdentityNotFound    = "IDENTITY_NOT_FOUND"
	ErrCodeInvalidImage        = "INVALID_IMAGE"
	ErrCodeNoFaceInImage       = "NO_FACE_IN_IMAGE"
	ErrCodeImageURLBlocked     = "IMAGE_URL_BLOCKED"
	ErrCodeInvalidAmount       = "INVALID_AMOUNT"
)

// NewInvalidRequestError はリクエスト解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewUnknownStationError は未知の駅名エラーを生成する。
// 駅名は登録済みの名称と完全一致する必要がある。
func NewUnknownStationError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownStation,
		Message:  fmt.Sprintf("指定された駅が見つかりません: %s", name),
		Category: "validation",
		Action:   "駅名を確認してください。駅名は登録済みの名称と完全一致する必要があります。",
	}
}

// NewSameStationError は乗車駅と降車駅が同一の場合のエラーを生成する。
func NewSameStationError() *APIError {
	return &APIError{
		Code:     ErrCodeSameStation,
		Message:  "乗車駅と降車駅が同じです。",
		Category: "validation",
		Action:   "異なる駅を選択してください。",
	}
}

// NewInvalidTicketKindError は無効なきっぷ種別エラーを生成する。
func NewInvalidTicketKindError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTicketKind,
		Message:  fmt.Sprintf("無効なきっぷ種別です: %s", kind),
		Category: "validation",
		Action:   "single または monthly を指定してください。",
	}
}

// NewInvalidDepartureError は乗車日時の形式エラーを生成する。
func NewInvalidDepartureError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDeparture,
		Message:  "乗車日または乗車時刻の形式が正しくありません。",
		Category: "validation",
		Action:   "日付はYYYY-MM-DD、時刻はHH:MM形式で指定してください。",
	}
}

// NewInsufficientBalanceError は残高不足エラーを生成する。
func NewInsufficientBalanceError(required, balance int64) *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientBalance,
		Message:  fmt.Sprintf("残高が不足しています。必要額: %d、現在の残高: %d", required, balance),
		Category: "ticket",
		Action:   "ウォレットにチャージしてから再度購入してください。",
	}
}

// NewActiveMonthlyExistsError は有効な定期券の重複購入エラーを生成する。
// NEW状態の定期券は利用者あたり同時に1枚までという不変条件を守る。
func NewActiveMonthlyExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeActiveMonthlyExists,
		Message:  "有効な定期券を既にお持ちです。",
		Category: "ticket",
		Action:   "現在の定期券の有効期限が切れてから購入してください。",
	}
}

// NewIdentityNotFoundError は利用者未検出エラーを生成する。
func NewIdentityNotFoundError(identityID string) *APIError {
	return &APIError{
		Code:     ErrCodeIdentityNotFound,
		Message:  fmt.Sprintf("指定された利用者が見つかりません: %s", identityID),
		Category: "validation",
		Action:   "利用者IDを確認してください。",
	}
}

// NewInvalidImageError は画像デコード失敗エラーを生成する。
func NewInvalidImageError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidImage,
		Message:  "画像データの読み取りに失敗しました。",
		Category: "enrollment",
		Action:   "base64エンコードされた画像を送信してください。",
	}
}

// NewNoFaceInImageError は登録画像に顔が検出されなかった場合のエラーを生成する。
func NewNoFaceInImageError() *APIError {
	return &APIError{
		Code:     ErrCodeNoFaceInImage,
		Message:  "画像から顔を検出できませんでした。",
		Category: "enrollment",
		Action:   "顔がはっきり写った画像で再度お試しください。",
	}
}

// NewImageURLBlockedError は登録画像URLがセキュリティポリシーでブロックされた場合のエラーを生成する。
func NewImageURLBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeImageURLBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "enrollment",
		Action:   "公開されているWebサイトのURLを指定してください。プライベートIPへのアクセスは許可されていません。",
	}
}

// NewInvalidAmountError は無効なチャージ金額エラーを生成する。
func NewInvalidAmountError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAmount,
		Message:  "チャージ金額は正の整数で指定してください。",
		Category: "validation",
		Action:   "金額を確認してください。",
	}
}
