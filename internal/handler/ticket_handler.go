package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dyniee/metro-facecheck/internal/model"
	"github.com/Dyniee/metro-facecheck/internal/ticket"
)

// TicketServiceInterface はきっぷハンドラーが必要とするサービスインターフェース。
type TicketServiceInterface interface {
	// Purchase はきっぷを購入する。
	Purchase(ctx context.Context, req ticket.PurchaseRequest) (*model.Ticket, error)
	// TopUp はウォレットに残高をチャージし、チャージ後の残高を返す。
	TopUp(ctx context.Context, identityID string, amount int64) (int64, error)
	// ListByIdentity は利用者の購入履歴を返す。
	ListByIdentity(ctx context.Context, identityID string) ([]*model.Ticket, error)
}

// TicketHandler はきっぷ購入とウォレット操作のHTTPハンドラー。
type TicketHandler struct {
	service TicketServiceInterface
}

// NewTicketHandler はTicketHandlerを生成する。
func NewTicketHandler(service TicketServiceInterface) *TicketHandler {
	return &TicketHandler{service: service}
}

// purchaseRequest はきっぷ購入リクエストのボディ。
// valid_dateはYYYY-MM-DD、departure_timeはHH:MM形式。
type purchaseRequest struct {
	IdentityID    string `json:"identity_id"`
	Kind          string `json:"kind"`
	FromStation   string `json:"from_station"`
	ToStation     string `json:"to_station"`
	ValidDate     string `json:"valid_date"`
	DepartureTime string `json:"departure_time"`
}

// topUpRequest はチャージリクエストのボディ。
type topUpRequest struct {
	IdentityID string `json:"identity_id"`
	Amount     int64  `json:"amount"`
}

// topUpResponse はチャージのAPIレスポンス。
type topUpResponse struct {
	IdentityID string `json:"identity_id"`
	Balance    int64  `json:"balance"`
}

// ticketResponse はきっぷ情報のAPIレスポンス。
type ticketResponse struct {
	ID                string  `json:"id"`
	IdentityID        string  `json:"identity_id"`
	Kind              string  `json:"kind"`
	Status            string  `json:"status"`
	PurchasePrice     int64   `json:"purchase_price"`
	PurchaseTime      string  `json:"purchase_time"`
	ValidFrom         string  `json:"valid_from"`
	FromStation       string  `json:"from_station,omitempty"`
	ToStation         string  `json:"to_station,omitempty"`
	ExpectedDeparture *string `json:"expected_departure,omitempty"`
	TripCode          string  `json:"trip_code"`
}

// Purchase はきっぷ購入を処理する。
// POST /api/tickets
func (h *TicketHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if req.IdentityID == "" || req.Kind == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	kind := model.TicketKind(req.Kind)
	if kind == model.TicketKindSingle && req.FromStation == req.ToStation {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewSameStationError())
		return
	}

	validDate, departure, err := parseTravelTimes(req.ValidDate, req.DepartureTime)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidDepartureError())
		return
	}

	purchased, err := h.service.Purchase(r.Context(), ticket.PurchaseRequest{
		IdentityID:    req.IdentityID,
		Kind:          kind,
		FromStation:   req.FromStation,
		ToStation:     req.ToStation,
		ValidDate:     validDate,
		DepartureTime: departure,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toTicketResponse(purchased))
}

// TopUp は残高チャージを処理する。
// POST /api/wallet/topup
func (h *TicketHandler) TopUp(w http.ResponseWriter, r *http.Request) {
	var req topUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if req.IdentityID == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	balance, err := h.service.TopUp(r.Context(), req.IdentityID, req.Amount)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, topUpResponse{
		IdentityID: req.IdentityID,
		Balance:    balance,
	})
}

// ListByIdentity は利用者の購入履歴を返す。
// GET /api/identities/:id/tickets
func (h *TicketHandler) ListByIdentity(w http.ResponseWriter, r *http.Request) {
	identityID := chi.URLParam(r, "id")

	tickets, err := h.service.ListByIdentity(r.Context(), identityID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	results := make([]ticketResponse, len(tickets))
	for i, t := range tickets {
		results[i] = toTicketResponse(t)
	}
	writeJSONResponse(w, http.StatusOK, results)
}

// parseTravelTimes はvalid_dateとdeparture_timeを解析する。
// departure_timeはvalid_date（省略時は当日）の日付と組み合わせる。
func parseTravelTimes(validDate, departureTime string) (*time.Time, *time.Time, error) {
	var datePtr *time.Time
	date := time.Now()
	if validDate != "" {
		parsed, err := time.ParseInLocation("2006-01-02", validDate, time.Local)
		if err != nil {
			return nil, nil, err
		}
		date = parsed
		datePtr = &parsed
	}

	if departureTime == "" {
		return datePtr, nil, nil
	}

	clock, err := time.ParseInLocation("15:04", departureTime, time.Local)
	if err != nil {
		return nil, nil, err
	}
	departure := time.Date(date.Year(), date.Month(), date.Day(),
		clock.Hour(), clock.Minute(), 0, 0, time.Local)
	return datePtr, &departure, nil
}

// toTicketResponse はmodel.TicketからAPIレスポンスに変換する。
func toTicketResponse(t *model.Ticket) ticketResponse {
	resp := ticketResponse{
		ID:            t.ID,
		IdentityID:    t.IdentityID,
		Kind:          string(t.Kind),
		Status:        string(t.Status),
		PurchasePrice: t.PurchasePrice,
		PurchaseTime:  t.PurchaseTime.Format(time.RFC3339),
		ValidFrom:     t.ValidFrom.Format("2006-01-02"),
		FromStation:   t.FromStation,
		ToStation:     t.ToStation,
		TripCode:      t.TripCode,
	}
	if t.ExpectedDeparture != nil {
		s := t.ExpectedDeparture.Format(time.RFC3339)
		resp.ExpectedDeparture = &s
	}
	return resp
}
