// Package liveness は提示画像の生体らしさ判定を提供する。
// 顔ランドマークから目の開き具合と顔の向きを評価する純粋な計算のみで、
// 外部依存を持たない。
package liveness

import (
	"math"

	"github.com/Dyniee/metro-facecheck/internal/model"
	"github.com/Dyniee/metro-facecheck/internal/vision"
)

// 目の輪郭を構成するランドマークのインデックス（MediaPipe FaceMesh）。
// 各目6点: [目頭, 上まぶた外, 上まぶた内, 目尻, 下まぶた内, 下まぶた外]。
var (
	leftEyeIndices  = [6]int{362, 385, 387, 263, 373, 380}
	rightEyeIndices = [6]int{33, 160, 158, 133, 153, 144}
)

// 顔向き判定に使用するランドマークインデックス（MediaPipe FaceMesh）。
const (
	noseTipIndex       = 1
	rightEyeOuterIndex = 33
	leftEyeOuterIndex  = 263
)

// minLandmarkCount は判定に必要な最小ランドマーク数。
// MediaPipe FaceMeshは468点を返すが、使用する最大インデックスは387。
const minLandmarkCount = 468

// Evaluator は生体らしさ判定器。閾値は設定から注入する。
type Evaluator struct {
	eyeOpennessThreshold float64
	noseOffsetThreshold  float64
}

// NewEvaluator はEvaluator の新しいインスタンスを生成する。
func NewEvaluator(eyeOpennessThreshold, noseOffsetThreshold float64) *Evaluator {
	return &Evaluator{
		eyeOpennessThreshold: eyeOpennessThreshold,
		noseOffsetThreshold:  noseOffsetThreshold,
	}
}

// Result は生体らしさ判定の結果。
// Aliveがfalseの場合、Reasonに最初に失敗したチェックの理由コードが入る。
type Result struct {
	Alive  bool
	Reason string
}

// Evaluate はランドマーク抽出結果から生体らしさを判定する。
// チェックは固定順で評価し、最初に失敗したものの理由を返す:
// 顔未検出 > 目閉じ > 顔向き不正。
func (e *Evaluator) Evaluate(lm *vision.LandmarksResult) Result {
	if lm == nil || !lm.Found || len(lm.Points) < minLandmarkCount {
		return Result{Alive: false, Reason: model.ReasonNoFaceDetected}
	}

	leftEAR := eyeAspectRatio(lm.Points, leftEyeIndices)
	rightEAR := eyeAspectRatio(lm.Points, rightEyeIndices)
	// 両目の平均で判定する。片目をつぶった場合も平均が閾値を下回れば拒否。
	avgEAR := (leftEAR + rightEAR) / 2
	if avgEAR < e.eyeOpennessThreshold {
		return Result{Alive: false, Reason: model.ReasonEyesClosed}
	}

	if !e.facingForward(lm) {
		return Result{Alive: false, Reason: model.ReasonBadPose}
	}

	return Result{Alive: true}
}

// eyeAspectRatio は片目の縦横比（EAR）を計算する。
// EAR = (|p2-p6| + |p3-p5|) / (2 * |p1-p4|)
// 目を閉じると縦距離が縮み、EARが小さくなる。
// 水平距離が0の退化ケースは0を返す（= 目閉じ扱い）。
func eyeAspectRatio(landmarks []vision.Point, indices [6]int) float64 {
	p1 := landmarks[indices[0]]
	p2 := landmarks[indices[1]]
	p3 := landmarks[indices[2]]
	p4 := landmarks[indices[3]]
	p5 := landmarks[indices[4]]
	p6 := landmarks[indices[5]]

	v1 := distance(p2, p6)
	v2 := distance(p3, p5)
	h := distance(p1, p4)
	if h == 0 {
		return 0
	}
	return (v1 + v2) / (2 * h)
}

// facingForward は鼻先の水平位置から正面を向いているかを判定する。
// 両目尻の中点からの鼻先のずれを画像幅で正規化し、閾値未満なら正面。
// 顔を横に向けると鼻先が目の中心から大きくずれる。
func (e *Evaluator) facingForward(lm *vision.LandmarksResult) bool {
	if lm.Width <= 0 {
		return false
	}
	nose := lm.Points[noseTipIndex]
	eyeCenterX := (lm.Points[rightEyeOuterIndex].X + lm.Points[leftEyeOuterIndex].X) / 2
	offset := math.Abs(nose.X-eyeCenterX) / float64(lm.Width)
	return offset < e.noseOffsetThreshold
}

func distance(a, b vision.Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}
