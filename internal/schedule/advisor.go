// Package schedule は運行ダイヤに基づく乗車アドバイス機能を提供する。
// 運行間隔の判定と、運賃・ダイヤ質問に答えるルールベースのアシスタントを含む。
package schedule

import (
	"fmt"
	"time"
)

// Advice は指定日時の運行間隔の案内。
type Advice struct {
	HeadwayMinutes int
	Message        string
}

// 時刻帯の境界（0時からの分数）。
const (
	min0500 = 5 * 60
	min0700 = 7 * 60
	min0900 = 9 * 60
	min1630 = 16*60 + 30
	min1700 = 17 * 60
	min1830 = 18*60 + 30
	min1900 = 19 * 60
	min2200 = 22 * 60
)

// Frequency は指定日時の運行間隔を判定する。
//
// 平日: ピーク（07:00〜09:00、16:30〜18:30）5分間隔、
// 通常（05:00〜07:00、09:00〜16:30、18:30〜22:00）10分間隔、他は15分間隔。
// 週末: ピーク（07:00〜09:00、17:00〜19:00）8分間隔、
// 通常（09:00〜17:00）10分間隔、他は15分間隔。
func Frequency(t time.Time) Advice {
	m := t.Hour()*60 + t.Minute()
	weekday := t.Weekday()
	isWeekend := weekday == time.Saturday || weekday == time.Sunday

	if !isWeekend {
		switch {
		case (m >= min0700 && m <= min0900) || (m >= min1630 && m <= min1830):
			return Advice{5, "ピーク時間帯です（5分間隔）。駅が混雑するため早めにお越しください。"}
		case (m >= min0500 && m < min0700) || (m > min0900 && m < min1630) || (m > min1830 && m <= min2200):
			return Advice{10, "通常時間帯です（10分間隔）。"}
		default:
			return Advice{15, "閑散時間帯です（15分間隔）。"}
		}
	}

	switch {
	case (m >= min0700 && m <= min0900) || (m >= min1700 && m <= min1900):
		return Advice{8, "週末のピーク時間帯です（8分間隔）。"}
	case m > min0900 && m < min1700:
		return Advice{10, "週末の通常時間帯です（10分間隔）。"}
	default:
		return Advice{15, "週末の閑散時間帯です（15分間隔）。"}
	}
}

// AdviceAt は指定日時の案内メッセージを日時付きで整形する。
func AdviceAt(t time.Time) string {
	advice := Frequency(t)
	return fmt.Sprintf("%sの%d時頃: %s", t.Format("01/02"), t.Hour(), advice.Message)
}
