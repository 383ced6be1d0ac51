package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/Dyniee/metro-facecheck/internal/checkin"
	"github.com/Dyniee/metro-facecheck/internal/config"
	"github.com/Dyniee/metro-facecheck/internal/database"
	"github.com/Dyniee/metro-facecheck/internal/enrollment"
	"github.com/Dyniee/metro-facecheck/internal/facematch"
	"github.com/Dyniee/metro-facecheck/internal/handler"
	"github.com/Dyniee/metro-facecheck/internal/liveness"
	"github.com/Dyniee/metro-facecheck/internal/logger"
	"github.com/Dyniee/metro-facecheck/internal/metrics"
	"github.com/Dyniee/metro-facecheck/internal/middleware"
	"github.com/Dyniee/metro-facecheck/internal/repository"
	"github.com/Dyniee/metro-facecheck/internal/schedule"
	"github.com/Dyniee/metro-facecheck/internal/security"
	"github.com/Dyniee/metro-facecheck/internal/ticket"
	"github.com/Dyniee/metro-facecheck/internal/vision"
	"github.com/Dyniee/metro-facecheck/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーとメトリクスサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	sqlDB, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	db := repository.SQLDB{DB: sqlDB}

	// 2. リポジトリの初期化
	identRepo := repository.NewPostgresIdentityRepo(sqlDB)
	encodingRepo := repository.NewPostgresEncodingRepo(sqlDB)
	stationRepo := repository.NewPostgresStationRepo(sqlDB)
	ticketRepo := repository.NewPostgresTicketRepo(sqlDB)
	walletRepo := repository.NewPostgresWalletRepo(sqlDB)
	checkinRepo := repository.NewPostgresCheckinRepo(sqlDB)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 顔認証プロバイダの初期化（レイテンシ・失敗をステージ別に記録する）
	visionClient := vision.NewClient(
		&http.Client{Timeout: cfg.VisionTimeout},
		slog.Default(), cfg.VisionBaseURL, cfg.VisionTimeout,
	)
	provider := vision.NewInstrumentedProvider(visionClient, collector)

	// 5. 照合キャッシュの初期化
	cache := facematch.NewEnrollmentCache(encodingRepo, slog.Default())
	cache.SetReloadHook(collector.RecordCacheSize)

	ctx := context.Background()
	if err := cache.Reload(ctx); err != nil {
		return fmt.Errorf("failed to load enrollment cache: %w", err)
	}

	// 6. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 7. ドメインサービスの初期化
	evaluator := liveness.NewEvaluator(cfg.EyeOpennessThreshold, cfg.NoseOffsetThreshold)
	matcher := facematch.NewMatcher(cache, cfg.FaceMatchTolerance)

	checkinService := checkin.NewService(
		db, provider, evaluator, matcher,
		identRepo, ticketRepo, checkinRepo,
		collector, slog.Default(),
		checkin.Config{
			Cooldown:         cfg.CheckinCooldown,
			DepartureGrace:   cfg.DepartureGracePeriod,
			MonthlyValidDays: cfg.MonthlyValidDays,
		},
	)

	enrollmentService := enrollment.NewService(
		provider, identRepo, encodingRepo, cache, ssrfGuard, slog.Default(),
	)

	ticketService := ticket.NewService(
		db, identRepo, ticketRepo, walletRepo, slog.Default(), cfg.MonthlyValidDays,
	)

	assistant := schedule.NewAssistant(sanitizer)

	// 8. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configの値はreq/min単位なのでreq/secに変換する
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.CheckinRate = rate.Limit(float64(cfg.RateLimitCheckin) / 60.0)
	rateLimiterCfg.CheckinBurst = cfg.RateLimitCheckin

	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Metrics:           collector,

		CheckinService:    checkinService,
		EnrollmentService: enrollmentService,
		TicketService:     ticketService,
		Stations:          stationRepo,
		Assistant:         assistant,
		CheckinActivity:   checkinRepo,
	})

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// メトリクスは内部ネットワーク向けに別ポートで公開する
	metricsServer := &http.Server{
		Addr:         ":" + cfg.MetricsPort,
		Handler:      metrics.SetupMetricsRoute(registry),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	go func() {
		slog.Info("metrics server starting",
			slog.String("addr", metricsServer.Addr),
		)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、監査レコードの保持期限クリーンアップを日次で実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. クリーンアップジョブの初期化
	checkinRepo := repository.NewPostgresCheckinRepo(db)
	cleanupJob := cleanup.NewCleanupJob(checkinRepo, slog.Default())
	cleanupJob.RetentionDays = cfg.AuditRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Int("audit_retention_days", cfg.AuditRetentionDays),
	)

	// 起動直後に1回実行し、以降は日次で実行する
	if err := cleanupJob.Run(ctx); err != nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped gracefully")
			return nil
		case <-ticker.C:
			if err := cleanupJob.Run(ctx); err != nil {
				slog.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
