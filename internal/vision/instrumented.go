package vision

import (
	"context"
	"time"
)

// ステージ名。メトリクスのラベルに使用する。
const (
	StageLandmarks = "landmarks"
	StageEncode    = "encode"
)

// ProviderMetrics はプロバイダ呼び出しの観測値を記録するインターフェース。
type ProviderMetrics interface {
	RecordProviderFailure(stage string)
	RecordVisionLatency(stage string, duration time.Duration)
}

// InstrumentedProvider はProviderをラップし、呼び出しごとの
// レイテンシと失敗をステージ別に記録する。
type InstrumentedProvider struct {
	provider Provider
	metrics  ProviderMetrics
}

// NewInstrumentedProvider はInstrumentedProvider の新しいインスタンスを生成する。
func NewInstrumentedProvider(provider Provider, metrics ProviderMetrics) *InstrumentedProvider {
	return &InstrumentedProvider{
		provider: provider,
		metrics:  metrics,
	}
}

// Landmarks はランドマーク抽出を委譲し、レイテンシと失敗を記録する。
func (p *InstrumentedProvider) Landmarks(ctx context.Context, imageB64 string) (*LandmarksResult, error) {
	start := time.Now()
	result, err := p.provider.Landmarks(ctx, imageB64)
	p.metrics.RecordVisionLatency(StageLandmarks, time.Since(start))
	if err != nil {
		p.metrics.RecordProviderFailure(StageLandmarks)
	}
	return result, err
}

// Encode はエンコーディング抽出を委譲し、レイテンシと失敗を記録する。
func (p *InstrumentedProvider) Encode(ctx context.Context, imageB64 string) ([]float64, error) {
	start := time.Now()
	encoding, err := p.provider.Encode(ctx, imageB64)
	p.metrics.RecordVisionLatency(StageEncode, time.Since(start))
	if err != nil {
		p.metrics.RecordProviderFailure(StageEncode)
	}
	return encoding, err
}

var _ Provider = (*InstrumentedProvider)(nil)
