package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Dyniee/metro-facecheck/internal/middleware"
)

// StationDirectory は駅の照会に必要なインターフェース。
type StationDirectory interface {
	StationChecker
	StationLister
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           middleware.StatusMetricsRecorder // nilの場合は記録しない

	// 入場判定
	CheckinService CheckinServiceInterface

	// 登録
	EnrollmentService EnrollmentServiceInterface

	// きっぷ・ウォレット
	TicketService TicketServiceInterface

	// 駅・案内
	Stations        StationDirectory
	Assistant       AssistantInterface
	CheckinActivity StationActivityLister
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Metrics → Recovery → RateLimit(General)
//
// /healthはレート制限の外に配置する（死活監視が制限に引っかからないように）。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware())

	checkinHandler := NewCheckinHandler(deps.CheckinService, deps.Stations)
	enrollmentHandler := NewEnrollmentHandler(deps.EnrollmentService)
	ticketHandler := NewTicketHandler(deps.TicketService)
	infoHandler := NewInfoHandler(deps.Stations, deps.Assistant, deps.CheckinActivity)

	// 死活監視
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// APIルート
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 入場判定（プロバイダ呼び出しを伴うため専用のレート制限を追加）
		r.With(deps.RateLimiter.CheckinMiddleware()).Post("/api/checkin", checkinHandler.Checkin)

		// 利用者登録
		r.Post("/api/enrollments", enrollmentHandler.Enroll)

		// きっぷ・ウォレット
		r.Post("/api/tickets", ticketHandler.Purchase)
		r.Post("/api/wallet/topup", ticketHandler.TopUp)
		r.Get("/api/identities/{id}/tickets", ticketHandler.ListByIdentity)

		// 駅・運賃・案内
		r.Get("/api/stations", infoHandler.ListStations)
		r.Get("/api/stations/{name}/checkins", infoHandler.StationActivity)
		r.Post("/api/fare", infoHandler.Fare)
		r.Post("/api/advice", infoHandler.Advice)
		r.Post("/api/chat", infoHandler.Chat)
	})

	return r
}
