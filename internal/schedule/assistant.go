package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Dyniee/metro-facecheck/internal/fare"
	"github.com/Dyniee/metro-facecheck/internal/security"
)

// Assistant は運賃・ダイヤ質問に答えるルールベースのチャットアシスタント。
// 意図は挨拶・ダイヤ・運賃の3種で、どれにも該当しなければ案内文を返す。
// 応答は強調タグを含むためサニタイズしてから返す。
type Assistant struct {
	sanitizer security.ContentSanitizerService

	// now はテストで時刻を固定するために差し替え可能にしている
	now func() time.Time
}

// NewAssistant はAssistant の新しいインスタンスを生成する。
func NewAssistant(sanitizer security.ContentSanitizerService) *Assistant {
	return &Assistant{sanitizer: sanitizer, now: time.Now}
}

var (
	greetingPattern = regexp.MustCompile(`(chào|xin chào|hello|hi|こんにちは|こんばんは)`)
	schedulePattern = regexp.MustCompile(`(lịch tàu|tần suất|mấy phút|ダイヤ|時刻|運行|何分)`)
	farePattern     = regexp.MustCompile(`(giá vé|bao nhiêu tiền|運賃|いくら|料金)`)
	hourPattern     = regexp.MustCompile(`(\d{1,2})(:\d{2}|h|時| giờ)`)
	tomorrowPattern = regexp.MustCompile(`(ngày mai|明日)`)
	weekendPattern  = regexp.MustCompile(`(cuối tuần|thứ 7|chủ nhật|週末|土曜|日曜)`)
)

// Reply は利用者のメッセージに対する応答を生成する。
// 入力はタグを除去してから解析し、応答はサニタイズ済みHTMLで返す。
func (a *Assistant) Reply(message string) string {
	query := strings.ToLower(a.sanitizer.StripTags(message))

	var reply string
	switch {
	case greetingPattern.MatchString(query):
		reply = "こんにちは。Metro FaceCheckのアシスタントです。" +
			"<strong>運賃</strong>（例: 「Bến ThànhからSuối Tiênまでの運賃」）や" +
			"<strong>ダイヤ</strong>（例: 「明日8時のダイヤ」)についてお答えできます。"
	case schedulePattern.MatchString(query):
		reply = a.scheduleReply(query)
	case farePattern.MatchString(query):
		reply = a.fareReply(query)
	default:
		reply = "すみません、うまく理解できませんでした。" +
			"<strong>運賃</strong>または<strong>ダイヤ</strong>について質問してください。"
	}

	return a.sanitizer.Sanitize(reply)
}

// scheduleReply はダイヤ質問への応答を生成する。
// メッセージ中の時刻（8h、8時、8:00）と日指定（明日・週末）を拾う。
func (a *Assistant) scheduleReply(query string) string {
	now := a.now()

	target := now
	if weekendPattern.MatchString(query) {
		// 次の土曜日に合わせる
		daysAhead := (int(time.Saturday) - int(now.Weekday()) + 7) % 7
		target = now.AddDate(0, 0, daysAhead)
	} else if tomorrowPattern.MatchString(query) {
		target = now.AddDate(0, 0, 1)
	}

	hour := now.Hour()
	if m := hourPattern.FindStringSubmatch(query); m != nil {
		if h, err := strconv.Atoi(m[1]); err == nil && h >= 0 && h <= 23 {
			hour = h
		}
	}

	target = time.Date(target.Year(), target.Month(), target.Day(), hour, 0, 0, 0, target.Location())
	return AdviceAt(target)
}

// fareReply は運賃質問への応答を生成する。
// メッセージ中に駅名が2つ必要で、路線順で先に見つかった2駅を
// ［乗車駅、降車駅］とみなす。
func (a *Assistant) fareReply(query string) string {
	var found []string
	for _, name := range fare.StationNames {
		// 「Ga 」を除いた駅名で柔軟に照合する
		needle := strings.ToLower(strings.TrimPrefix(name, "Ga "))
		if strings.Contains(query, needle) {
			found = append(found, name)
		}
		if len(found) == 2 {
			break
		}
	}

	if len(found) < 2 {
		return "運賃の検索には乗車駅と降車駅の2駅が必要です。" +
			"（例: 「Bến ThànhからSuối Tiênまでの運賃」）"
	}

	price, err := fare.SinglePrice(found[0], found[1])
	if err != nil {
		return "申し訳ありません、その2駅の運賃が見つかりませんでした。駅名をご確認ください。"
	}
	return fmt.Sprintf("<strong>%s</strong>から<strong>%s</strong>までの片道運賃は %s VND です（1,000 VND割引適用済み）。",
		found[0], found[1], formatVND(price))
}

// formatVND は金額を3桁区切りで整形する。
func formatVND(v int64) string {
	s := strconv.FormatInt(v, 10)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
