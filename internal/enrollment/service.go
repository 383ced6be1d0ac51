// Package enrollment は利用者の登録と顔エンコーディングの管理を提供する。
package enrollment

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Dyniee/metro-facecheck/internal/facematch"
	"github.com/Dyniee/metro-facecheck/internal/model"
	"github.com/Dyniee/metro-facecheck/internal/repository"
	"github.com/Dyniee/metro-facecheck/internal/security"
	"github.com/Dyniee/metro-facecheck/internal/vision"
)

// maxImageBytes は顔写真URLから取得する画像の最大サイズ。
const maxImageBytes = 10 << 20 // 10MB

// imageFetchTimeout は顔写真URL取得のタイムアウト。
const imageFetchTimeout = 10 * time.Second

// EnrollRequest は登録リクエスト。
// IdentityIDが空の場合は新規利用者を作成して登録する。
// 画像はImageB64かImageURLのどちらか一方で指定する。
type EnrollRequest struct {
	IdentityID string
	Username   string
	Email      string
	Phone      string
	RiderType  model.RiderType
	ImageB64   string
	ImageURL   string
}

// Service は顔エンコーディングの登録サービス。
// 登録画像をエンコードし、エンコーディング行を置き換え、
// 照合キャッシュを再構築する。
type Service struct {
	provider   vision.Provider
	identities repository.IdentityRepository
	encodings  repository.EncodingRepository
	cache      *facematch.EnrollmentCache
	ssrfGuard  security.SSRFGuardService
	logger     *slog.Logger

	// now はテストで時刻を固定するために差し替え可能にしている
	now func() time.Time
}

// NewService はService の新しいインスタンスを生成する。
func NewService(
	provider vision.Provider,
	identities repository.IdentityRepository,
	encodings repository.EncodingRepository,
	cache *facematch.EnrollmentCache,
	ssrfGuard security.SSRFGuardService,
	logger *slog.Logger,
) *Service {
	return &Service{
		provider:   provider,
		identities: identities,
		encodings:  encodings,
		cache:      cache,
		ssrfGuard:  ssrfGuard,
		logger:     logger,
		now:        time.Now,
	}
}

// Enroll は利用者の顔エンコーディングを登録する。
// 既存のエンコーディングは破棄して置き換える（再登録）。
// 登録成功後に照合キャッシュを再構築する。
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (*model.Identity, error) {
	identity, err := s.resolveIdentity(ctx, req)
	if err != nil {
		return nil, err
	}

	imageB64, err := s.resolveImage(ctx, req)
	if err != nil {
		return nil, err
	}

	encoding, err := s.provider.Encode(ctx, imageB64)
	if err != nil {
		return nil, fmt.Errorf("顔エンコーディングの取得に失敗しました: %w", err)
	}
	if encoding == nil {
		return nil, model.NewNoFaceInImageError()
	}

	now := s.now()
	if err := s.encodings.Replace(ctx, &model.FaceEncoding{
		ID:         uuid.New().String(),
		IdentityID: identity.ID,
		Encoding:   encoding,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return nil, fmt.Errorf("顔エンコーディングの保存に失敗しました: %w", err)
	}

	// 再構築に失敗しても登録自体は完了している。キャッシュは旧スナップ
	// ショットのまま動作し、次回の再構築で追い付く。
	if err := s.cache.Reload(ctx); err != nil {
		s.logger.Error("照合キャッシュの再構築に失敗しました",
			slog.String("identity_id", identity.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.Info("顔エンコーディングを登録しました",
		slog.String("identity_id", identity.ID),
		slog.String("username", identity.Username),
	)
	return identity, nil
}

// resolveIdentity は登録対象の利用者を特定する。
// IdentityID指定時は既存利用者の再登録、未指定時は新規作成。
func (s *Service) resolveIdentity(ctx context.Context, req EnrollRequest) (*model.Identity, error) {
	if req.IdentityID != "" {
		identity, err := s.identities.FindByID(ctx, req.IdentityID)
		if err != nil {
			return nil, err
		}
		if identity == nil {
			return nil, model.NewIdentityNotFoundError(req.IdentityID)
		}
		return identity, nil
	}

	riderType := req.RiderType
	if riderType == "" {
		riderType = model.RiderTypeGeneral
	}
	now := s.now()
	identity := &model.Identity{
		ID:        uuid.New().String(),
		Username:  req.Username,
		Email:     req.Email,
		Phone:     req.Phone,
		RiderType: riderType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, fmt.Errorf("利用者の作成に失敗しました: %w", err)
	}
	return identity, nil
}

// resolveImage は登録画像をbase64文字列として取得する。
// URL指定時はSSRF防止付きクライアントで取得する。
func (s *Service) resolveImage(ctx context.Context, req EnrollRequest) (string, error) {
	if req.ImageB64 != "" {
		if _, err := base64.StdEncoding.DecodeString(req.ImageB64); err != nil {
			return "", model.NewInvalidImageError()
		}
		return req.ImageB64, nil
	}
	if req.ImageURL == "" {
		return "", model.NewInvalidImageError()
	}
	return s.fetchImage(ctx, req.ImageURL)
}

// fetchImage は顔写真URLから画像を取得してbase64エンコードする。
// プライベートIPやメタデータIPへのアクセスはブロックされる。
func (s *Service) fetchImage(ctx context.Context, rawURL string) (string, error) {
	if err := s.ssrfGuard.ValidateURL(rawURL); err != nil {
		s.logger.Warn("顔写真URLがブロックされました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return "", model.NewImageURLBlockedError()
	}

	client := s.ssrfGuard.NewSafeClient(imageFetchTimeout, maxImageBytes)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", model.NewInvalidImageError()
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		// safeurlはDNS解決後のIP検証でもブロックする（DNS再バインディング対策）
		s.logger.Warn("顔写真URLの取得に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return "", model.NewImageURLBlockedError()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", model.NewInvalidImageError()
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return "", model.NewInvalidImageError()
	}
	if len(body) == 0 {
		return "", model.NewInvalidImageError()
	}
	return base64.StdEncoding.EncodeToString(body), nil
}
