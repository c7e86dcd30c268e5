package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/quantforge/signal-engine/internal/database"
	"github.com/quantforge/signal-engine/internal/decision"
	"github.com/quantforge/signal-engine/internal/models"
	"github.com/quantforge/signal-engine/internal/pipeline"
	"github.com/quantforge/signal-engine/internal/redis"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db     *database.DB
	engine *decision.Engine
	runner *pipeline.Runner
	redis  *redis.Client
	kafka  bool
	log    *zap.Logger
}

// NewHandler creates a new Handler. redisClient may be nil; kafkaConfigured
// reports whether a producer is wired.
func NewHandler(db *database.DB, engine *decision.Engine, runner *pipeline.Runner, redisClient *redis.Client, kafkaConfigured bool, log *zap.Logger) *Handler {
	return &Handler{
		db:     db,
		engine: engine,
		runner: runner,
		redis:  redisClient,
		kafka:  kafkaConfigured,
		log:    log,
	}
}

// RunCycle handles POST /api/v1/cycle/run. The optional body selects the
// cycle date; it defaults to today.
func (h *Handler) RunCycle(w http.ResponseWriter, r *http.Request) {
	date := time.Now().UTC()
	if r.Body != nil && r.ContentLength != 0 {
		var req struct {
			Date string `json:"date"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.Date != "" {
			parsed, err := time.Parse("2006-01-02", req.Date)
			if err != nil {
				http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			date = parsed
		}
	}

	result, err := h.runner.RunCycle(r.Context(), date)
	if err != nil {
		h.log.Error("cycle failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if result.Cycle.AlreadyRan {
		respondJSON(w, http.StatusConflict, result)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetPortfolio handles GET /api/v1/portfolio
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	state := h.engine.State()
	if state == nil {
		http.Error(w, "portfolio not initialized", http.StatusServiceUnavailable)
		return
	}

	positions := make([]*models.Position, 0, len(state.Positions))
	for _, pos := range state.Positions {
		positions = append(positions, pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"cash_balance":    state.CashBalance,
		"portfolio_value": h.engine.PortfolioValue(r.Context()),
		"positions":       positions,
		"max_drawdown":    state.MaxDrawdown,
	})
}

// GetPerformance handles GET /api/v1/portfolio/performance
func (h *Handler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	if h.engine.State() == nil {
		http.Error(w, "portfolio not initialized", http.StatusServiceUnavailable)
		return
	}
	respondJSON(w, http.StatusOK, h.engine.Performance(r.Context(), time.Now().UTC()))
}

// GetTrades handles GET /api/v1/trades
func (h *Handler) GetTrades(w http.ResponseWriter, r *http.Request) {
	state := h.engine.State()
	if state == nil {
		http.Error(w, "portfolio not initialized", http.StatusServiceUnavailable)
		return
	}
	trades := state.TradeHistory
	if trades == nil {
		trades = []models.Trade{}
	}
	respondJSON(w, http.StatusOK, trades)
}

// GetSignals handles GET /api/v1/signals/{date}
func (h *Handler) GetSignals(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", mux.Vars(r)["date"])
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	signals, err := h.db.GetSignalsForDate(r.Context(), date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if signals == nil {
		signals = []models.RawSignal{}
	}
	respondJSON(w, http.StatusOK, signals)
}

// GetReport handles GET /api/v1/report/{date}. The report is rebuilt from the
// persisted combined signal rows for the date, priced at that date's close.
// Position sizes are not persisted, so rebuilt entries carry none.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	date, err := time.Parse("2006-01-02", mux.Vars(r)["date"])
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	signals, err := h.db.GetSignalsForDate(r.Context(), date)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	report := &models.Report{Date: date}
	for _, sig := range signals {
		if sig.SignalName != models.SignalCombined {
			continue
		}
		entry := models.ReportEntry{
			Symbol:    sig.Symbol,
			Score:     sig.Score,
			Rationale: sig.Rationale,
		}
		if sig.Horizon != nil {
			entry.Horizon = *sig.Horizon
		}
		if price, err := h.db.CloseAsOf(r.Context(), sig.Symbol, date); err == nil {
			entry.Price = decimal.NewFromFloat(price)
		}
		if sig.Score >= 0 {
			report.TopLong = append(report.TopLong, entry)
		} else {
			report.TopShort = append(report.TopShort, entry)
		}
	}
	if len(report.TopLong) == 0 && len(report.TopShort) == 0 {
		http.Error(w, "no report for date", http.StatusNotFound)
		return
	}
	sort.Slice(report.TopLong, func(i, j int) bool { return report.TopLong[i].Score > report.TopLong[j].Score })
	sort.Slice(report.TopShort, func(i, j int) bool { return report.TopShort[i].Score < report.TopShort[j].Score })

	respondJSON(w, http.StatusOK, report)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  map[string]string{},
	}
	services := health["services"].(map[string]string)
	allHealthy := true

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			services["postgres"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			services["postgres"] = "healthy"
		}
	} else {
		services["postgres"] = "not configured"
		allHealthy = false
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "not configured"
	}

	if h.kafka {
		services["kafka"] = "configured"
	} else {
		services["kafka"] = "not configured"
	}

	if !allHealthy {
		health["status"] = "degraded"
	}

	respondJSON(w, http.StatusOK, health)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
