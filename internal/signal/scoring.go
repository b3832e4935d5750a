package signal

import (
	"math"

	"github.com/quantfold/gexengine/internal/gex"
)

// Factor weights of the quality model. They sum to 1.0; each factor scores
// 0-10 on a threshold ladder, so the composite lands on a 0-100 scale.
const (
	weightMoveExhaustion   = 0.25
	weightExpectedMoveUse  = 0.20
	weightWallProximity    = 0.20
	weightTimeRemaining    = 0.15
	weightRegimeStrength   = 0.10
	weightDriftAlignment   = 0.10
)

// ScoreInput is everything the quality model looks at. Scoring the same
// input twice always yields the same result.
type ScoreInput struct {
	Metrics        gex.Metrics
	ShortStrike    float64
	Wall           float64 // put wall for bull puts, call wall for bear calls
	OpenPrice      float64 // session open; 0 means unknown
	HoursRemaining float64
	Bias           int // +1 bullish (bull put), -1 bearish (bear call), 0 neutral (condor)
}

// ScoreResult carries the composite score plus the classification derived
// from it.
type ScoreResult struct {
	Score        int          `json:"score"`
	Level        QualityLevel `json:"level"`
	Risk         RiskLevel    `json:"risk"`
	MoveRatio    float64      `json:"moveRatio"`
	WallDistance float64      `json:"wallDistance"`
}

// Score runs the six-factor quality model.
func Score(in ScoreInput) ScoreResult {
	m := in.Metrics

	expectedMove := math.Max(m.ExpectedMove, 1)
	moveRatio := math.Abs(m.CurrentPrice-in.OpenPrice) / expectedMove
	if in.OpenPrice == 0 {
		moveRatio = 0
	}
	moveUsage := math.Abs(in.ShortStrike-m.CurrentPrice) / expectedMove
	wallDistance := math.Abs(in.ShortStrike - in.Wall)

	weighted := scoreMoveExhaustion(moveRatio)*weightMoveExhaustion +
		scoreExpectedMoveUsage(moveUsage)*weightExpectedMoveUse +
		scoreWallProximity(wallDistance)*weightWallProximity +
		scoreTimeRemaining(in.HoursRemaining)*weightTimeRemaining +
		scoreRegimeStrength(m)*weightRegimeStrength +
		scoreDriftAlignment(m.NetDrift, in.Bias)*weightDriftAlignment

	score := int(math.Round(weighted * 10))

	level := QualityAggressive
	switch {
	case score >= 80:
		level = QualityPremium
	case score >= 60:
		level = QualityStandard
	}

	risk := RiskLow
	switch {
	case moveRatio > 1.5 || in.HoursRemaining < 1.5:
		risk = RiskHigh
	case moveRatio > 1.0 || in.HoursRemaining < 2.5 || wallDistance > 35:
		risk = RiskMedium
	}

	return ScoreResult{
		Score:        score,
		Level:        level,
		Risk:         risk,
		MoveRatio:    moveRatio,
		WallDistance: wallDistance,
	}
}

// A move already spent leaves less fuel to breach the short strike.
func scoreMoveExhaustion(ratio float64) float64 {
	switch {
	case ratio >= 1.0:
		return 10
	case ratio >= 0.8:
		return 8
	case ratio >= 0.6:
		return 6
	case ratio >= 0.4:
		return 4
	case ratio >= 0.2:
		return 2
	}
	return 0
}

// Short strikes placed beyond the expected move band score higher.
func scoreExpectedMoveUsage(usage float64) float64 {
	switch {
	case usage >= 1.5:
		return 10
	case usage >= 1.2:
		return 8
	case usage >= 1.0:
		return 6
	case usage >= 0.75:
		return 4
	case usage >= 0.5:
		return 2
	}
	return 0
}

// Short strikes hugging the OI wall benefit from its magnet effect.
func scoreWallProximity(distance float64) float64 {
	switch {
	case distance <= 5:
		return 10
	case distance <= 10:
		return 8
	case distance <= 15:
		return 6
	case distance <= 25:
		return 4
	case distance <= 35:
		return 2
	}
	return 0
}

func scoreTimeRemaining(hours float64) float64 {
	switch {
	case hours >= 5:
		return 10
	case hours >= 4:
		return 8
	case hours >= 3:
		return 6
	case hours >= 2.5:
		return 5
	case hours >= 1.5:
		return 3
	}
	return 1
}

func scoreRegimeStrength(m gex.Metrics) float64 {
	switch m.Regime {
	case gex.RegimeStable:
		abs := math.Abs(m.TotalGEX)
		switch {
		case abs >= 2e9:
			return 10
		case abs >= 1e9:
			return 8
		case abs >= 5e8:
			return 6
		}
		return 5
	case gex.RegimeNeutral:
		return 3
	}
	return 0
}

func scoreDriftAlignment(drift float64, bias int) float64 {
	if bias == 0 {
		// Neutral structures want no directional pressure at all.
		if math.Abs(drift) <= 0.5 {
			return 6
		}
		return 1
	}

	aligned := (bias > 0 && drift > 0) || (bias < 0 && drift < 0)
	abs := math.Abs(drift)
	switch {
	case aligned && abs >= 2:
		return 10
	case aligned && abs >= 1:
		return 8
	case aligned && abs >= 0.5:
		return 6
	case abs <= 0.5:
		return 4
	}
	return 1
}
