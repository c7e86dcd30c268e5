package horizon

import (
	"math"

	"github.com/quantforge/signal-engine/internal/models"
)

// Classifier tags a signal instance with an expected holding period.
//
// Gap signals are always short-lived and mean-reversion trades play out over
// weeks, so those map statically. Momentum signals can run on any horizon and
// are scored from their underlying features.
type Classifier struct{}

// New returns a horizon classifier.
func New() *Classifier {
	return &Classifier{}
}

// Classify buckets one signal instance into short, mid or long. Unknown
// signal names classify as mid rather than failing.
func (c *Classifier) Classify(signalName string, score float64, features map[string]float64) models.Horizon {
	switch signalName {
	case models.SignalGapBreakaway:
		return models.HorizonShort
	case models.SignalMeanrevBollinger:
		return models.HorizonMid
	case models.SignalMomentum20120:
		return c.classifyMomentum(score, features)
	default:
		return models.HorizonMid
	}
}

// classifyMomentum scores short-term and long-term characteristics from the
// momentum features; whichever side reaches 3 points wins, mid otherwise.
func (c *Classifier) classifyMomentum(score float64, features map[string]float64) models.Horizon {
	ret20, ok20 := features[models.FeatureRet20]
	ret120, ok120 := features[models.FeatureRet120]
	if !ok20 || !ok120 {
		// No features to look at; strong signals tend to be short plays.
		if math.Abs(score) > 0.7 {
			return models.HorizonShort
		}
		return models.HorizonMid
	}
	vol := features[models.FeatureVol20]

	shortPoints := 0
	if math.Abs(ret20) > 0.15 {
		shortPoints += 2
	}
	if vol > 0.25 {
		shortPoints++
	}
	if math.Abs(ret20) > 1.5*math.Abs(ret120) {
		shortPoints++
	}

	longPoints := 0
	if math.Abs(ret120) > 0.30 {
		longPoints += 2
	}
	if vol < 0.15 {
		longPoints++
	}
	if math.Abs(ret120) > 1.2*math.Abs(ret20) {
		longPoints++
	}

	switch {
	case shortPoints >= 3:
		return models.HorizonShort
	case longPoints >= 3:
		return models.HorizonLong
	default:
		return models.HorizonMid
	}
}
