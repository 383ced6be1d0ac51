package facematch

import (
	"math"

	"github.com/Dyniee/metro-facecheck/internal/model"
)

// Matcher は提示された顔エンコーディングを登録済みエンコーディングと照合する。
type Matcher struct {
	cache     *EnrollmentCache
	tolerance float64
}

// NewMatcher はMatcher の新しいインスタンスを生成する。
// toleranceは許容するユークリッド距離の上限（厳密未満で一致）。
func NewMatcher(cache *EnrollmentCache, tolerance float64) *Matcher {
	return &Matcher{cache: cache, tolerance: tolerance}
}

// MatchResult は照合の結果。
// Matchedがfalseの場合、Reasonに拒否理由コードが入る。
type MatchResult struct {
	Matched    bool
	IdentityID string
	Distance   float64
	Reason     string
}

// Match は提示エンコーディングに最も近い登録利用者を返す。
// 距離が許容値未満のエントリのうち最小距離のものを選ぶ。
// 同距離のエントリが複数ある場合は、キャッシュ順（identity_id昇順）で
// 先のものを選ぶ。この決定性により同じ入力は常に同じ利用者に解決される。
func (m *Matcher) Match(probe []float64) MatchResult {
	entries := m.cache.Entries()
	if len(entries) == 0 {
		return MatchResult{Matched: false, Reason: model.ReasonNoKnownFaces}
	}

	best := -1
	bestDistance := math.Inf(1)
	for i, entry := range entries {
		d := euclideanDistance(probe, entry.Encoding)
		if d < m.tolerance && d < bestDistance {
			best = i
			bestDistance = d
		}
	}

	if best < 0 {
		return MatchResult{Matched: false, Reason: model.ReasonNoMatch}
	}
	return MatchResult{
		Matched:    true,
		IdentityID: entries[best].IdentityID,
		Distance:   bestDistance,
	}
}

// euclideanDistance は2つのエンコーディング間のユークリッド距離を計算する。
// 次元不一致の場合は無限大を返す（一致しない）。
func euclideanDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
