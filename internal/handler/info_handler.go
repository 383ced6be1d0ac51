package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dyniee/metro-facecheck/internal/fare"
	"github.com/Dyniee/metro-facecheck/internal/model"
	"github.com/Dyniee/metro-facecheck/internal/schedule"
)

// StationLister は駅一覧取得のためのインターフェース。
type StationLister interface {
	// List は全駅をID昇順で返す。
	List(ctx context.Context) ([]*model.Station, error)
}

// StationActivityLister は駅別の入場実績照会のためのインターフェース。
type StationActivityLister interface {
	// ListByStation は指定駅の成功レコードを新しい順に返す。
	ListByStation(ctx context.Context, station string, limit int) ([]*model.Checkin, error)
}

// AssistantInterface はチャットハンドラーが必要とするインターフェース。
type AssistantInterface interface {
	// Reply は利用者のメッセージに対する応答を返す。
	Reply(message string) string
}

// InfoHandler は駅一覧・運賃・ダイヤ案内・チャット・駅別実績のHTTPハンドラー。
type InfoHandler struct {
	stations  StationLister
	assistant AssistantInterface
	activity  StationActivityLister
}

// NewInfoHandler はInfoHandlerを生成する。
func NewInfoHandler(stations StationLister, assistant AssistantInterface, activity StationActivityLister) *InfoHandler {
	return &InfoHandler{
		stations:  stations,
		assistant: assistant,
		activity:  activity,
	}
}

// stationResponse は駅情報のAPIレスポンス。
type stationResponse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// fareRequest は運賃照会リクエストのボディ。
type fareRequest struct {
	FromStation string `json:"from_station"`
	ToStation   string `json:"to_station"`
}

// fareResponse は運賃照会のAPIレスポンス。
type fareResponse struct {
	FromStation string `json:"from_station"`
	ToStation   string `json:"to_station"`
	Price       int64  `json:"price"`
}

// adviceRequest はダイヤ案内リクエストのボディ。
// dateはYYYY-MM-DD、timeはHH:MM形式。省略時は現在時刻。
type adviceRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// adviceResponse はダイヤ案内のAPIレスポンス。
type adviceResponse struct {
	HeadwayMinutes int    `json:"headway_minutes"`
	Message        string `json:"message"`
}

// chatRequest はチャットリクエストのボディ。
type chatRequest struct {
	Message string `json:"message"`
}

// chatResponse はチャットのAPIレスポンス。
type chatResponse struct {
	Reply string `json:"reply"`
}

// stationActivityResponse は駅別の入場実績のAPIレスポンス。
type stationActivityResponse struct {
	Station  string                   `json:"station"`
	Checkins []stationCheckinResponse `json:"checkins"`
}

// stationCheckinResponse は入場実績1件分。
type stationCheckinResponse struct {
	IdentityID  *string   `json:"identity_id"`
	TicketID    *string   `json:"ticket_id"`
	CheckinTime time.Time `json:"checkin_time"`
}

// ListStations は駅一覧を返す。
// GET /api/stations
func (h *InfoHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.stations.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]stationResponse, len(stations))
	for i, s := range stations {
		results[i] = stationResponse{ID: s.ID, Name: s.Name}
	}
	writeJSONResponse(w, http.StatusOK, results)
}

// Fare は2駅間の運賃を返す。
// POST /api/fare
func (h *InfoHandler) Fare(w http.ResponseWriter, r *http.Request) {
	var req fareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	// どちらの駅名が不正かを切り分けて返す
	if !fare.KnownStation(req.FromStation) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUnknownStationError(req.FromStation))
		return
	}
	if !fare.KnownStation(req.ToStation) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUnknownStationError(req.ToStation))
		return
	}

	price, err := fare.SinglePrice(req.FromStation, req.ToStation)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewUnknownStationError(req.FromStation+" / "+req.ToStation))
		return
	}

	writeJSONResponse(w, http.StatusOK, fareResponse{
		FromStation: req.FromStation,
		ToStation:   req.ToStation,
		Price:       price,
	})
}

// Advice は指定日時の運行間隔の案内を返す。
// POST /api/advice
func (h *InfoHandler) Advice(w http.ResponseWriter, r *http.Request) {
	var req adviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	at := time.Now()
	if req.Date != "" || req.Time != "" {
		parsed, err := parseAdviceTime(req.Date, req.Time)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidDepartureError())
			return
		}
		at = parsed
	}

	advice := schedule.Frequency(at)
	writeJSONResponse(w, http.StatusOK, adviceResponse{
		HeadwayMinutes: advice.HeadwayMinutes,
		Message:        schedule.AdviceAt(at),
	})
}

// Chat はルールベースアシスタントの応答を返す。
// POST /api/chat
func (h *InfoHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	writeJSONResponse(w, http.StatusOK, chatResponse{
		Reply: h.assistant.Reply(req.Message),
	})
}

// defaultActivityLimit は駅別実績のデフォルト取得件数。
const defaultActivityLimit = 20

// maxActivityLimit は駅別実績の最大取得件数。
const maxActivityLimit = 100

// StationActivity は指定駅の直近の入場成功レコードを返す。
// 駅スタッフ端末の混雑確認用。
// GET /api/stations/{name}/checkins
func (h *InfoHandler) StationActivity(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !fare.KnownStation(name) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUnknownStationError(name))
		return
	}

	limit := defaultActivityLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxActivityLimit {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
			return
		}
		limit = n
	}

	records, err := h.activity.ListByStation(r.Context(), name, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	checkins := make([]stationCheckinResponse, len(records))
	for i, c := range records {
		checkins[i] = stationCheckinResponse{
			IdentityID:  c.IdentityID,
			TicketID:    c.TicketID,
			CheckinTime: c.CheckinTime,
		}
	}
	writeJSONResponse(w, http.StatusOK, stationActivityResponse{
		Station:  name,
		Checkins: checkins,
	})
}

// parseAdviceTime はdateとtimeを1つの時刻に合成する。
// どちらか一方の省略時は現在の日付・時刻で補完する。
func parseAdviceTime(dateStr, timeStr string) (time.Time, error) {
	now := time.Now()

	date := now
	if dateStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
		if err != nil {
			return time.Time{}, err
		}
		date = parsed
	}

	clock := now
	if timeStr != "" {
		parsed, err := time.ParseInLocation("15:04", timeStr, time.Local)
		if err != nil {
			return time.Time{}, err
		}
		clock = parsed
	}

	return time.Date(date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), 0, 0, time.Local), nil
}
