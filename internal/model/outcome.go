// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"time"
)

// 入場判定の理由コード。機械可読コードとしてAPIレスポンスにそのまま含める。
const (
	// ReasonNoFaceDetected は顔が検出できなかったことを示す。
	ReasonNoFaceDetected = "no_face_detected"
	// ReasonEyesClosed は目が閉じていると判定されたことを示す。
	ReasonEyesClosed = "eyes_closed"
	// ReasonBadPose は正面を向いていないと判定されたことを示す。
	ReasonBadPose = "bad_pose"
	// ReasonNoFaceEncoding は画像からエンコーディングを抽出できなかったことを示す。
	ReasonNoFaceEncoding = "no_face_encoding"
	// ReasonNoKnownFaces は登録済みの顔データが1件も存在しないことを示す。
	ReasonNoKnownFaces = "no_known_faces"
	// ReasonNoMatch は許容距離内の登録顔が見つからなかったことを示す。
	ReasonNoMatch = "no_match"
	// ReasonUserNotFound は顔は一致したが利用者レコードが存在しないことを示す
	// （データ整合性の異常）。
	ReasonUserNotFound = "user_not_found"
	// ReasonRapidCheckinDenied はクールダウン時間内の再入場が拒否されたことを示す。
	ReasonRapidCheckinDenied = "rapid_checkin_denied"
	// ReasonNoTicket はNEW状態のきっぷが1枚も存在しないことを示す。
	ReasonNoTicket = "no_ticket"
	// ReasonWrongStation は片道きっぷの乗車駅が提示駅と異なることを示す。
	ReasonWrongStation = "wrong_station"
	// ReasonWrongTime は乗車予定時刻の有効ウィンドウ外であることを示す。
	ReasonWrongTime = "wrong_time"
	// ReasonAllTicketsInvalid は全候補を評価しても入場可能なきっぷがなかったことを示す。
	ReasonAllTicketsInvalid = "all_tickets_invalid"
	// ReasonProviderTimeout は顔認証プロバイダ呼び出しがタイムアウトしたことを示す。
	ReasonProviderTimeout = "provider_timeout"
	// ReasonError は内部エラーによる拒否を示す。サービス自体は停止しない。
	ReasonError = "error"
	// ReasonSingleOK は片道きっぷによる入場許可を示す。
	ReasonSingleOK = "single_ok"
	// ReasonMonthlyOK は定期券による入場許可を示す。
	ReasonMonthlyOK = "monthly_ok"
)

// Outcome は入場判定パイプラインのタグ付き結果を表す。
// Admittedがtrueの場合はIdentityIDとTicketIDが必ず設定される。
// 拒否の場合、本人特定済みであればIdentityIDが設定される。
type Outcome struct {
	Admitted   bool
	Reason     string
	Message    string
	IdentityID *string
	TicketID   *string
}

// Denied は拒否結果を生成する。
func Denied(reason, message string) Outcome {
	return Outcome{Admitted: false, Reason: reason, Message: message}
}

// DeniedForIdentity は本人特定済みの拒否結果を生成する。
func DeniedForIdentity(reason, message, identityID string) Outcome {
	return Outcome{Admitted: false, Reason: reason, Message: message, IdentityID: &identityID}
}

// Admit は入場許可結果を生成する。
func Admit(reason, message, identityID, ticketID string) Outcome {
	return Outcome{
		Admitted:   true,
		Reason:     reason,
		Message:    message,
		IdentityID: &identityID,
		TicketID:   &ticketID,
	}
}

// 判定結果の利用者向けメッセージ。
var outcomeMessages = map[string]string{
	ReasonNoFaceDetected:    "顔が検出できませんでした。カメラの正面に立ってください。",
	ReasonEyesClosed:        "目を閉じています。目を開けてカメラをまっすぐ見てください。",
	ReasonBadPose:           "カメラをまっすぐ見てください（横を向かないでください）。",
	ReasonNoFaceEncoding:    "画像が不鮮明です。もう一度撮影してください。",
	ReasonNoKnownFaces:      "顔データが1件も登録されていません。",
	ReasonNoMatch:           "この顔に対応する登録が見つかりません。",
	ReasonUserNotFound:      "顔は一致しましたが、利用者情報が見つかりません。係員にお知らせください。",
	ReasonNoTicket:          "有効なきっぷが見つかりません。きっぷを購入してください。",
	ReasonAllTicketsInvalid: "お持ちのきっぷは期限切れか、この駅・日付では利用できません。",
	ReasonProviderTimeout:   "顔認証サービスが応答しませんでした。もう一度お試しください。",
	ReasonError:             "システムエラーが発生しました。係員にお知らせください。",
	ReasonSingleOK:          "きっぷが有効です。ご乗車ください。",
	ReasonMonthlyOK:         "定期券が有効です。ご乗車ください。",
}

// OutcomeMessage は理由コードに対応する利用者向けメッセージを返す。
// 未知のコードにはReasonErrorのメッセージを返す。
func OutcomeMessage(reason string) string {
	if msg, ok := outcomeMessages[reason]; ok {
		return msg
	}
	return outcomeMessages[ReasonError]
}

// RapidCheckinMessage はクールダウン拒否のメッセージを生成する。
// 直前の入場駅と経過時間を含める。
func RapidCheckinMessage(lastStation string, elapsed time.Duration) string {
	minutes := int(elapsed.Minutes())
	seconds := int(elapsed.Seconds()) % 60
	return fmt.Sprintf("%sで%d分%d秒前にチェックイン済みです。しばらく待ってから再度お試しください。",
		lastStation, minutes, seconds)
}

// WrongStationMessage は乗車駅不一致のメッセージを生成する。
func WrongStationMessage(ticketStation string) string {
	return fmt.Sprintf("乗車駅が異なります。このきっぷの乗車駅: %s", ticketStation)
}

// WrongTimeMessage は有効時間外のメッセージを生成する。
func WrongTimeMessage(windowStart, windowEnd time.Time) string {
	return fmt.Sprintf("きっぷの有効時間外です。有効時間: %s〜%s",
		windowStart.Format("15:04"), windowEnd.Format("15:04"))
}
