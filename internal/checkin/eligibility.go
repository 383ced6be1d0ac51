// Package checkin は入場判定パイプラインを提供する。
// 生体らしさ判定・本人照合・リプレイガード・適格性判定を順に実行し、
// 監査レコードの書き込みときっぷの消費を単一トランザクションで行う。
package checkin

import (
	"time"

	"github.com/Dyniee/metro-facecheck/internal/model"
)

// Decision は適格性判定の結果。
// Admittedがtrueの場合、Ticketに入場を許可したきっぷが入る。
type Decision struct {
	Admitted bool
	Reason   string
	Message  string
	Ticket   *model.Ticket
}

// resolverConfig は適格性判定のパラメータ。
type resolverConfig struct {
	departureGrace   time.Duration
	monthlyValidDays int
}

// resolveEligibility は利用者のNEWきっぷから入場可否を判定する純粋関数。
// ticketsは定期券優先・購入時刻昇順で渡されること（リポジトリの契約）。
//
// 候補は順に評価し、3値で分岐する:
//   - スキップ: 対象外（有効日が今日でない片道、期限切れ定期）→ 次の候補へ
//   - 即時拒否: 片道きっぷの乗車駅不一致・時刻ウィンドウ外 → 以降の候補は見ない
//   - 入場許可: 片道はsingle_ok（このきっぷを消費）、定期はmonthly_ok（消費しない）
//
// きっぷが1枚もなければno_ticket、全候補をスキップしたらall_tickets_invalid。
func resolveEligibility(tickets []*model.Ticket, station string, now time.Time, cfg resolverConfig) Decision {
	if len(tickets) == 0 {
		return Decision{
			Reason:  model.ReasonNoTicket,
			Message: model.OutcomeMessage(model.ReasonNoTicket),
		}
	}

	for _, t := range tickets {
		switch t.Kind {
		case model.TicketKindMonthly:
			if monthlyExpired(t, now, cfg.monthlyValidDays) {
				continue
			}
			return Decision{
				Admitted: true,
				Reason:   model.ReasonMonthlyOK,
				Message:  model.OutcomeMessage(model.ReasonMonthlyOK),
				Ticket:   t,
			}

		case model.TicketKindSingle:
			if !sameDate(t.ValidFrom, now) {
				continue
			}
			if t.FromStation != station {
				return Decision{
					Reason:  model.ReasonWrongStation,
					Message: model.WrongStationMessage(t.FromStation),
					Ticket:  t,
				}
			}
			if t.ExpectedDeparture != nil {
				start := t.ExpectedDeparture.Add(-cfg.departureGrace)
				end := t.ExpectedDeparture.Add(cfg.departureGrace)
				if now.Before(start) || now.After(end) {
					return Decision{
						Reason:  model.ReasonWrongTime,
						Message: model.WrongTimeMessage(start, end),
						Ticket:  t,
					}
				}
			}
			return Decision{
				Admitted: true,
				Reason:   model.ReasonSingleOK,
				Message:  model.OutcomeMessage(model.ReasonSingleOK),
				Ticket:   t,
			}
		}
	}

	return Decision{
		Reason:  model.ReasonAllTicketsInvalid,
		Message: model.OutcomeMessage(model.ReasonAllTicketsInvalid),
	}
}

// monthlyExpired は定期券の有効期間（開始日からvalidDays日間）が切れているかを返す。
// 開始日からちょうどvalidDays日経過した時点で期限切れとなる。
func monthlyExpired(t *model.Ticket, now time.Time, validDays int) bool {
	return !now.Before(t.ValidFrom.AddDate(0, 0, validDays))
}

// sameDate は2つの時刻が同じ暦日かを返す。
func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// replayDenied はクールダウン時間内の再入場かを判定する。
// lastは直近の成功レコード（nilなら初回入場）。
func replayDenied(last *model.Checkin, now time.Time, cooldown time.Duration) (bool, time.Duration) {
	if last == nil {
		return false, 0
	}
	elapsed := now.Sub(last.CheckinTime)
	return elapsed < cooldown, elapsed
}
