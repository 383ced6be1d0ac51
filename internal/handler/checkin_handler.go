// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Dyniee/metro-facecheck/internal/model"
)

// CheckinServiceInterface は入場判定ハンドラーが必要とするサービスインターフェース。
type CheckinServiceInterface interface {
	// Checkin は1回の入場試行を判定し、タグ付き結果を返す。
	Checkin(ctx context.Context, station, imageB64 string) model.Outcome
}

// StationChecker は駅名の事前検証のためのインターフェース。
// repository.StationRepositoryを直接要求せず、最小限のインターフェースとして定義する。
type StationChecker interface {
	// ExistsByName は指定名の駅が存在するかを返す。完全一致で照合する。
	ExistsByName(ctx context.Context, name string) (bool, error)
}

// CheckinHandler は入場判定のHTTPハンドラー。
type CheckinHandler struct {
	service  CheckinServiceInterface
	stations StationChecker
}

// NewCheckinHandler はCheckinHandlerを生成する。
func NewCheckinHandler(service CheckinServiceInterface, stations StationChecker) *CheckinHandler {
	return &CheckinHandler{
		service:  service,
		stations: stations,
	}
}

// checkinRequest は入場判定リクエストのボディ。
type checkinRequest struct {
	Station  string `json:"station"`
	ImageB64 string `json:"image_b64"`
}

// checkinResponse は入場判定のAPIレスポンス。
// 拒否もHTTP 200で返す（判定結果はエラーではない）。
type checkinResponse struct {
	Success    bool    `json:"success"`
	Reason     string  `json:"reason"`
	Message    string  `json:"message"`
	IdentityID *string `json:"identity_id,omitempty"`
	TicketID   *string `json:"ticket_id,omitempty"`
}

// Checkin は入場判定を処理する。
// POST /api/checkin
//
// 駅名はパイプライン実行前に検証し、未知の駅名は400で拒否する。
func (h *CheckinHandler) Checkin(w http.ResponseWriter, r *http.Request) {
	var req checkinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if req.Station == "" || req.ImageB64 == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	exists, err := h.stations.ExistsByName(r.Context(), req.Station)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !exists {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewUnknownStationError(req.Station))
		return
	}

	outcome := h.service.Checkin(r.Context(), req.Station, req.ImageB64)

	writeJSONResponse(w, http.StatusOK, checkinResponse{
		Success:    outcome.Admitted,
		Reason:     outcome.Reason,
		Message:    outcome.Message,
		IdentityID: outcome.IdentityID,
		TicketID:   outcome.TicketID,
	})
}
