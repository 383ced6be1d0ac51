package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Vision（顔ランドマーク・エンコーディングプロバイダ）
	VisionBaseURL string
	VisionTimeout time.Duration

	// 入場判定
	FaceMatchTolerance   float64       // 照合の許容距離。この値未満で一致とみなす
	EyeOpennessThreshold float64       // EARのしきい値。これ未満は目閉じ判定
	NoseOffsetThreshold  float64       // 鼻オフセットのしきい値。これ以上は横向き判定
	CheckinCooldown      time.Duration // 同一利用者の連続入場を拒否する時間
	DepartureGracePeriod time.Duration // 乗車予定時刻の前後許容幅
	MonthlyValidDays     int           // 定期券の有効日数
	AuditRetentionDays   int           // 監査レコードの保持日数

	// Rate Limit
	RateLimitCheckin int // 入場API req/min/IP
	RateLimitGeneral int // その他API req/min/IP

	// Server
	ServerPort  string
	MetricsPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// .envファイルが存在する場合は先に読み込む（未存在は無視）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.VisionBaseURL = os.Getenv("VISION_BASE_URL")
	if cfg.VisionBaseURL == "" {
		missing = append(missing, "VISION_BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.VisionTimeout = getEnvDuration("VISION_TIMEOUT", 500*time.Millisecond)
	cfg.FaceMatchTolerance = getEnvFloat("FACE_MATCH_TOLERANCE", 0.5)
	cfg.EyeOpennessThreshold = getEnvFloat("EYE_OPENNESS_THRESHOLD", 0.22)
	cfg.NoseOffsetThreshold = getEnvFloat("NOSE_OFFSET_THRESHOLD", 0.08)
	cfg.CheckinCooldown = getEnvDuration("CHECKIN_COOLDOWN", 5*time.Minute)
	cfg.DepartureGracePeriod = getEnvDuration("DEPARTURE_GRACE", 30*time.Minute)
	cfg.MonthlyValidDays = getEnvInt("MONTHLY_VALID_DAYS", 30)
	cfg.AuditRetentionDays = getEnvInt("AUDIT_RETENTION_DAYS", 90)
	cfg.RateLimitCheckin = getEnvInt("RATE_LIMIT_CHECKIN", 30)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
