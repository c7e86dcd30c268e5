package models

import "time"

// Signal names produced by the rule engine.
const (
	SignalMomentum20120    = "momentum_20_120"
	SignalMeanrevBollinger = "meanrev_bollinger"
	SignalGapBreakaway     = "gap_breakaway"
	SignalCombined         = "combined"
)

// Feature names consumed by the signal recipes. The feature pipeline that
// produces them is external; these are its published names.
const (
	FeatureRet20  = "momentum_ret_20"
	FeatureRet120 = "momentum_ret_120"
	FeatureVol20  = "momentum_vol_20d"
	FeatureSMA20  = "trend_sma_20"
)

// Horizon is the expected holding period of a signal.
type Horizon string

const (
	HorizonShort Horizon = "short"
	HorizonMid   Horizon = "mid"
	HorizonLong  Horizon = "long"
)

// Valid reports whether h is one of the known horizon buckets.
func (h Horizon) Valid() bool {
	return h == HorizonShort || h == HorizonMid || h == HorizonLong
}

// RawSignal is one scored signal instance for a (symbol, date, signal_name) key.
// Rank is assigned only to non-zero scores, descending by score.
type RawSignal struct {
	Symbol     string    `json:"symbol"`
	Date       time.Time `json:"date"`
	SignalName string    `json:"signal_name"`
	Score      float64   `json:"score"`
	Rank       *int      `json:"rank,omitempty"`
	Horizon    *Horizon  `json:"horizon,omitempty"`
	Rationale  string    `json:"rationale,omitempty"`
}

// Feature is a named numeric feature for a symbol on a date. Features are
// produced by an external pipeline and are read-only here.
type Feature struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Name   string    `json:"name"`
	Value  float64   `json:"value"`
}

// Bar is one daily OHLCV row (adjusted prices).
type Bar struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// ClosePrice is a (date, close) pair used for forward-return computation.
type ClosePrice struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// Instrument holds static reference data for a tradable symbol.
type Instrument struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Sector   string `json:"sector,omitempty"`
	Industry string `json:"industry,omitempty"`
}

// Fundamentals holds the subset of vendor fundamentals the decision engine
// scores. Every field is optional; missing fields leave the score untouched.
type Fundamentals struct {
	PERatio        *float64 `json:"pe_ratio,omitempty"`
	ProfitMargins  *float64 `json:"profit_margins,omitempty"`
	DebtToEquity   *float64 `json:"debt_to_equity,omitempty"`
	ReturnOnEquity *float64 `json:"return_on_equity,omitempty"`
}
