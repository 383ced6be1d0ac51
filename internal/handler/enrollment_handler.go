package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Dyniee/metro-facecheck/internal/enrollment"
	"github.com/Dyniee/metro-facecheck/internal/model"
)

// EnrollmentServiceInterface は登録ハンドラーが必要とするサービスインターフェース。
type EnrollmentServiceInterface interface {
	// Enroll は利用者の顔エンコーディングを登録する。
	Enroll(ctx context.Context, req enrollment.EnrollRequest) (*model.Identity, error)
}

// EnrollmentHandler は利用者登録のHTTPハンドラー。
type EnrollmentHandler struct {
	service EnrollmentServiceInterface
}

// NewEnrollmentHandler はEnrollmentHandlerを生成する。
func NewEnrollmentHandler(service EnrollmentServiceInterface) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

// enrollRequest は登録リクエストのボディ。
// identity_id指定時は既存利用者の再登録、未指定時は新規作成。
// 画像はimage_b64かimage_urlのどちらか一方で指定する。
type enrollRequest struct {
	IdentityID string `json:"identity_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	RiderType  string `json:"rider_type"`
	ImageB64   string `json:"image_b64"`
	ImageURL   string `json:"image_url"`
}

// identityResponse は利用者情報のAPIレスポンス。
type identityResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	RiderType string `json:"rider_type"`
	Balance   int64  `json:"balance"`
}

// Enroll は利用者の顔登録を処理する。
// POST /api/enrollments
func (h *EnrollmentHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if req.ImageB64 == "" && req.ImageURL == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidImageError())
		return
	}

	identity, err := h.service.Enroll(r.Context(), enrollment.EnrollRequest{
		IdentityID: req.IdentityID,
		Username:   req.Username,
		Email:      req.Email,
		Phone:      req.Phone,
		RiderType:  model.RiderType(req.RiderType),
		ImageB64:   req.ImageB64,
		ImageURL:   req.ImageURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, toIdentityResponse(identity))
}

// toIdentityResponse はmodel.IdentityからAPIレスポンスに変換する。
func toIdentityResponse(identity *model.Identity) identityResponse {
	return identityResponse{
		ID:        identity.ID,
		Username:  identity.Username,
		Email:     identity.Email,
		Phone:     identity.Phone,
		RiderType: string(identity.RiderType),
		Balance:   identity.Balance,
	}
}
