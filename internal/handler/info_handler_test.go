package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dyniee/metro-facecheck/internal/model"
)

// stubAssistant はAssistantInterfaceのスタブ実装。
type stubAssistant struct {
	reply string
	last  string
}

func (s *stubAssistant) Reply(message string) string {
	s.last = message
	return s.reply
}

// stubActivityLister はStationActivityListerのスタブ実装。
type stubActivityLister struct {
	records     []*model.Checkin
	lastStation string
	lastLimit   int
}

func (s *stubActivityLister) ListByStation(ctx context.Context, station string, limit int) ([]*model.Checkin, error) {
	s.lastStation = station
	s.lastLimit = limit
	return s.records, nil
}

func TestInfoHandler_ListStations(t *testing.T) {
	h := NewInfoHandler(newStationDirectory(), &stubAssistant{}, &stubActivityLister{})

	req := httptest.NewRequest(http.MethodGet, "/api/stations", nil)
	w := httptest.NewRecorder()

	h.ListStations(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var out []stationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("stations = %d, want 2", len(out))
	}
	if out[0].Name != "Ga Bến Thành" {
		t.Errorf("name = %q, want %q", out[0].Name, "Ga Bến Thành")
	}
}

func TestInfoHandler_Fare(t *testing.T) {
	h := NewInfoHandler(newStationDirectory(), &stubAssistant{}, &stubActivityLister{})

	body := `{"from_station": "Ga Bến Thành", "to_station": "Ga Thủ Đức"}`
	req := httptest.NewRequest(http.MethodPost, "/api/fare", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Fare(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var out fareResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	// Bến Thành → Thủ Đức = 14×1000−1000 = 13000 VND
	if out.Price != 13000 {
		t.Errorf("price = %d, want 13000", out.Price)
	}
}

func TestInfoHandler_Fare_UnknownStation_Returns400(t *testing.T) {
	h := NewInfoHandler(newStationDirectory(), &stubAssistant{}, &stubActivityLister{})

	body := `{"from_station": "Ga Hà Nội", "to_station": "Ga Thủ Đức"}`
	req := httptest.NewRequest(http.MethodPost, "/api/fare", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Fare(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var errResp apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if errResp.Code != model.ErrCodeUnknownStation {
		t.Errorf("code = %q, want %q", errResp.Code, model.ErrCodeUnknownStation)
	}
	// 不正な駅名のほうをエラーメッセージで特定する
	if !strings.Contains(errResp.Message, "Ga Hà Nội") {
		t.Errorf("メッセージに不正な駅名を含むべき: %s", errResp.Message)
	}
	if strings.Contains(errResp.Message, "Ga Thủ Đức") {
		t.Errorf("正しい駅名はメッセージに含むべきではない: %s", errResp.Message)
	}
}

func TestInfoHandler_Advice_WeekdayPeak(t *testing.T) {
	h := NewInfoHandler(newStationDirectory(), &stubAssistant{}, &stubActivityLister{})

	// 2026-04-15は水曜日、8時はピーク帯
	body := `{"date": "2026-04-15", "time": "08:00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/advice", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Advice(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var out adviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if out.HeadwayMinutes != 5 {
		t.Errorf("headway_minutes = %d, want 5", out.HeadwayMinutes)
	}
	if out.Message == "" {
		t.Error("messageが設定されるべき")
	}
}

func TestInfoHandler_Advice_InvalidDate_Returns400(t *testing.T) {
	h := NewInfoHandler(newStationDirectory(), &stubAssistant{}, &stubActivityLister{})

	body := `{"date": "next tuesday", "time": "08:00"}`
	req := httptest.NewRequest(http.MethodPost, "/api/advice", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Advice(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestInfoHandler_Chat(t *testing.T) {
	assistant := &stubAssistant{reply: "こんにちは！"}
	h := NewInfoHandler(newStationDirectory(), assistant, &stubActivityLister{})

	body := `{"message": "xin chào"}`
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Chat(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if out.Reply != "こんにちは！" {
		t.Errorf("reply = %q, want %q", out.Reply, "こんにちは！")
	}
	if assistant.last != "xin chào" {
		t.Errorf("アシスタントへの入力 = %q, want %q", assistant.last, "xin chào")
	}
}

// newActivityRequest は駅名のURLパラメータを設定したリクエストを生成する。
func newActivityRequest(target, station string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("name", station)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestInfoHandler_StationActivity(t *testing.T) {
	identityID := "id-1"
	ticketID := "t-1"
	lister := &stubActivityLister{
		records: []*model.Checkin{{
			ID:          "c-1",
			IdentityID:  &identityID,
			TicketID:    &ticketID,
			Station:     "Ga Bến Thành",
			CheckinTime: time.Date(2026, 4, 15, 10, 0, 0, 0, time.UTC),
			Success:     true,
		}},
	}
	h := NewInfoHandler(newStationDirectory(), &stubAssistant{}, lister)

	req := newActivityRequest("/api/stations/Ga%20Bến%20Thành/checkins?limit=5", "Ga Bến Thành")
	w := httptest.NewRecorder()

	h.StationActivity(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var out stationActivityResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if out.Station != "Ga Bến Thành" {
		t.Errorf("station = %q, want %q", out.Station, "Ga Bến Thành")
	}
	if len(out.Checkins) != 1 {
		t.Fatalf("checkins = %d, want 1", len(out.Checkins))
	}
	if out.Checkins[0].IdentityID == nil || *out.Checkins[0].IdentityID != identityID {
		t.Error("identity_idが設定されるべき")
	}
	if lister.lastStation != "Ga Bến Thành" {
		t.Errorf("照会された駅 = %q, want %q", lister.lastStation, "Ga Bến Thành")
	}
	if lister.lastLimit != 5 {
		t.Errorf("limit = %d, want 5", lister.lastLimit)
	}
}

func TestInfoHandler_StationActivity_DefaultLimit(t *testing.T) {
	lister := &stubActivityLister{}
	h := NewInfoHandler(newStationDirectory(), &stubAssistant{}, lister)

	req := newActivityRequest("/api/stations/Ga%20Bến%20Thành/checkins", "Ga Bến Thành")
	w := httptest.NewRecorder()

	h.StationActivity(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if lister.lastLimit != defaultActivityLimit {
		t.Errorf("limit = %d, want %d", lister.lastLimit, defaultActivityLimit)
	}
}

func TestInfoHandler_StationActivity_UnknownStation_Returns400(t *testing.T) {
	lister := &stubActivityLister{}
	h := NewInfoHandler(newStationDirectory(), &stubAssistant{}, lister)

	req := newActivityRequest("/api/stations/Ga%20Hà%20Nội/checkins", "Ga Hà Nội")
	w := httptest.NewRecorder()

	h.StationActivity(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	var errResp apiErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if errResp.Code != model.ErrCodeUnknownStation {
		t.Errorf("code = %q, want %q", errResp.Code, model.ErrCodeUnknownStation)
	}
	if lister.lastStation != "" {
		t.Error("未知の駅名ではリポジトリを照会すべきではない")
	}
}

func TestInfoHandler_StationActivity_InvalidLimit_Returns400(t *testing.T) {
	h := NewInfoHandler(newStationDirectory(), &stubAssistant{}, &stubActivityLister{})

	tests := []struct {
		name  string
		limit string
	}{
		{"数値でない", "abc"},
		{"ゼロ", "0"},
		{"上限超過", "101"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := newActivityRequest("/api/stations/Ga%20Bến%20Thành/checkins?limit="+tt.limit, "Ga Bến Thành")
			w := httptest.NewRecorder()

			h.StationActivity(w, req)

			if w.Result().StatusCode != http.StatusBadRequest {
				t.Errorf("limit=%s: status = %d, want %d", tt.limit, w.Result().StatusCode, http.StatusBadRequest)
			}
		})
	}
}
