package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func TestClient_Landmarks_FaceFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("HTTPメソッド = %s, want POST", r.Method)
		}
		if r.URL.Path != "/landmarks" {
			t.Errorf("パス = %s, want /landmarks", r.URL.Path)
		}

		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("リクエストJSONのパースに失敗した: %v", err)
		}
		if req["image_b64"] != "dGVzdA==" {
			t.Errorf("image_b64 = %s, want dGVzdA==", req["image_b64"])
		}

		resp := LandmarksResult{
			Found:  true,
			Width:  640,
			Height: 480,
			Points: []Point{
				{X: 100.5, Y: 200.25},
				{X: 110.0, Y: 205.0},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL, time.Second)

	result, err := c.Landmarks(context.Background(), "dGVzdA==")
	if err != nil {
		t.Fatalf("Landmarks がエラーを返した: %v", err)
	}

	if !result.Found {
		t.Error("Found = false, want true")
	}
	if len(result.Points) != 2 {
		t.Fatalf("ランドマーク数 = %d, want 2", len(result.Points))
	}
	if result.Points[0].X != 100.5 || result.Points[0].Y != 200.25 {
		t.Errorf("ランドマーク[0] = (%v, %v), want (100.5, 200.25)",
			result.Points[0].X, result.Points[0].Y)
	}
	if result.Width != 640 || result.Height != 480 {
		t.Errorf("画像サイズ = %dx%d, want 640x480", result.Width, result.Height)
	}
}

func TestClient_Landmarks_NoFace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"found": false, "points": []}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL, time.Second)

	result, err := c.Landmarks(context.Background(), "dGVzdA==")
	if err != nil {
		t.Fatalf("顔未検出はエラーではなく結果で表現されるべき: %v", err)
	}
	if result.Found {
		t.Error("Found = true, want false")
	}
	if len(result.Points) != 0 {
		t.Errorf("ランドマーク数 = %d, want 0", len(result.Points))
	}
}

func TestClient_Encode_ReturnsEncoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/encode" {
			t.Errorf("パス = %s, want /encode", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"found": true, "encoding": [0.1, 0.2, 0.3]}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL, time.Second)

	encoding, err := c.Encode(context.Background(), "dGVzdA==")
	if err != nil {
		t.Fatalf("Encode がエラーを返した: %v", err)
	}
	if len(encoding) != 3 {
		t.Fatalf("エンコーディング次元数 = %d, want 3", len(encoding))
	}
	if encoding[1] != 0.2 {
		t.Errorf("encoding[1] = %v, want 0.2", encoding[1])
	}
}

func TestClient_Encode_NoFace_ReturnsNil(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"found": false}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL, time.Second)

	encoding, err := c.Encode(context.Background(), "dGVzdA==")
	if err != nil {
		t.Fatalf("顔未検出はエラーではなくnilで表現されるべき: %v", err)
	}
	if encoding != nil {
		t.Errorf("encoding = %v, want nil", encoding)
	}
}

func TestClient_Timeout_ReturnsErrProviderTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
		w.Write([]byte(`{"found": false}`))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL, 50*time.Millisecond)

	_, err := c.Encode(context.Background(), "dGVzdA==")
	if err == nil {
		t.Fatal("タイムアウト時にエラーが返されるべき")
	}
	if !errors.Is(err, ErrProviderTimeout) {
		t.Errorf("ErrProviderTimeout であるべき: got %v", err)
	}
}

func TestClient_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL, time.Second)

	_, err := c.Landmarks(context.Background(), "dGVzdA==")
	if err == nil {
		t.Fatal("HTTPエラー時にエラーが返されるべき")
	}
	if errors.Is(err, ErrProviderTimeout) {
		t.Error("HTTPエラーはErrProviderTimeoutに変換されるべきではない")
	}
}

func TestClient_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL, time.Second)

	_, err := c.Landmarks(context.Background(), "dGVzdA==")
	if err == nil {
		t.Fatal("不正JSONレスポンス時にエラーが返されるべき")
	}
}

func TestClient_HTTPError_LogsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), server.URL, time.Second)

	_, _ = c.Encode(context.Background(), "dGVzdA==")

	logOutput := buf.String()
	if !strings.Contains(logOutput, "ERROR") {
		t.Errorf("プロバイダエラー時にERRORレベルのログが記録されるべき: %s", logOutput)
	}
}
