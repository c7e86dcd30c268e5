package decision

import "github.com/quantforge/signal-engine/internal/models"

// ScoreFundamentals maps vendor fundamentals onto a 0-1 quality score.
// The score starts neutral at 0.5 and each available metric nudges it;
// missing metrics leave it untouched, so no data at all scores exactly 0.5.
func ScoreFundamentals(f *models.Fundamentals) float64 {
	score := 0.5
	if f == nil {
		return score
	}

	if f.PERatio != nil && *f.PERatio > 0 {
		switch pe := *f.PERatio; {
		case pe < 15:
			score += 0.2
		case pe <= 25:
			score += 0.1
		case pe > 40:
			score -= 0.2
		}
	}

	if f.ProfitMargins != nil {
		switch m := *f.ProfitMargins; {
		case m > 0.15:
			score += 0.2
		case m > 0.05:
			score += 0.1
		default:
			score -= 0.1
		}
	}

	if f.DebtToEquity != nil {
		switch d := *f.DebtToEquity; {
		case d < 0.3:
			score += 0.1
		case d > 1.0:
			score -= 0.2
		}
	}

	if f.ReturnOnEquity != nil {
		switch roe := *f.ReturnOnEquity; {
		case roe > 0.15:
			score += 0.1
		case roe < 0.05:
			score -= 0.1
		}
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
