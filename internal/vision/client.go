// Package vision は顔認証プロバイダとの連携機能を提供する。
// ランドマーク抽出と顔エンコーディング抽出をHTTP経由で呼び出す。
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ErrProviderTimeout はプロバイダ呼び出しが期限内に完了しなかったことを示す。
// 入場判定ではこのエラーをprovider_timeoutの拒否に変換する。
var ErrProviderTimeout = errors.New("顔認証プロバイダがタイムアウトしました")

// Point は画像内の顔ランドマーク座標（ピクセル空間）。
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LandmarksResult はランドマーク抽出の結果。
// Foundがfalseの場合、Pointsは空。
type LandmarksResult struct {
	Found  bool    `json:"found"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Points []Point `json:"points"`
}

// Provider は顔認証プロバイダのインターフェース。
// 実装はHTTPクライアントだが、判定ロジックのテストではモックに差し替える。
type Provider interface {
	// Landmarks は画像から顔ランドマークを抽出する。
	Landmarks(ctx context.Context, imageB64 string) (*LandmarksResult, error)

	// Encode は画像から顔エンコーディングを抽出する。
	// 顔が検出できない場合はnilを返す（エラーではない）。
	Encode(ctx context.Context, imageB64 string) ([]float64, error)
}

// Client は顔認証プロバイダのHTTPクライアント。
// プロバイダはランドマーク抽出とエンコーディング抽出の2エンドポイントを持つ。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	timeout    time.Duration
}

// NewClient はClient の新しいインスタンスを生成する。
// timeoutはリクエスト単位の期限で、ゲート前の利用者を待たせないよう短く設定する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
		timeout:    timeout,
	}
}

// Landmarks は画像から顔ランドマークを抽出する。
func (c *Client) Landmarks(ctx context.Context, imageB64 string) (*LandmarksResult, error) {
	var result LandmarksResult
	if err := c.post(ctx, "/landmarks", imageB64, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Encode は画像から顔エンコーディングを抽出する。
// 顔が検出できない場合はnilを返す。
func (c *Client) Encode(ctx context.Context, imageB64 string) ([]float64, error) {
	var result struct {
		Found    bool      `json:"found"`
		Encoding []float64 `json:"encoding"`
	}
	if err := c.post(ctx, "/encode", imageB64, &result); err != nil {
		return nil, err
	}
	if !result.Found {
		return nil, nil
	}
	return result.Encoding, nil
}

// post はプロバイダのエンドポイントにJSONリクエストを送信する。
// 期限超過はErrProviderTimeoutに変換する。
func (c *Client) post(ctx context.Context, path, imageB64 string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"image_b64": imageB64})
	if err != nil {
		return fmt.Errorf("リクエストJSONの生成に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			c.logger.Warn("顔認証プロバイダがタイムアウトしました",
				slog.String("path", path),
				slog.Duration("timeout", c.timeout),
			)
			return ErrProviderTimeout
		}
		c.logger.Error("顔認証プロバイダの呼び出しに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("顔認証プロバイダの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("顔認証プロバイダがエラーステータスを返しました",
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("顔認証プロバイダがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error("顔認証プロバイダのレスポンスのパースに失敗しました",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	return nil
}

// compile-time interface check
var _ Provider = (*Client)(nil)
