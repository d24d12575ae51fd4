package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"StockPilot/internal/cache"
	"StockPilot/internal/calculator"
	"StockPilot/internal/model"
	"StockPilot/internal/session"
)

const (
	defaultDays = 60
	maxDays     = 3650
)

// PriceService is what the handlers need from the cache.
type PriceService interface {
	GetPriceData(ctx context.Context, symbol string, market model.Market, start, end time.Time) ([]model.PriceRow, error)
	ReconcileIntraday(ctx context.Context, symbol string, market model.Market) (model.PriceRow, bool)
	GetNews(ctx context.Context, symbol string, market model.Market) ([]model.NewsItem, error)
}

type Handlers struct {
	svc    PriceService
	now    func() time.Time
	logger zerolog.Logger
}

func NewHandlers(svc PriceService, logger zerolog.Logger) *Handlers {
	return &Handlers{svc: svc, now: time.Now, logger: logger}
}

func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type dailyRow struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

type dailyResponse struct {
	Symbol  string             `json:"symbol"`
	Market  model.Market       `json:"market"`
	Start   string             `json:"start"`
	End     string             `json:"end"`
	Rows    []dailyRow         `json:"rows"`
	Summary calculator.Summary `json:"summary"`
}

func keyParams(c *gin.Context) (string, model.Market, bool) {
	symbol := model.NormalizeSymbol(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return "", "", false
	}
	market, err := model.ParseMarket(c.DefaultQuery("market", string(model.MarketUS)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return "", "", false
	}
	return symbol, market, true
}

// GetStockDaily returns the last `days` trading rows plus their summary.
// The lookup window spans twice as many calendar days to cover weekends.
func (h *Handlers) GetStockDaily(c *gin.Context) {
	symbol, market, ok := keyParams(c)
	if !ok {
		return
	}
	days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(defaultDays)))
	if err != nil || days <= 0 || days > maxDays {
		c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer between 1 and " + strconv.Itoa(maxDays)})
		return
	}

	ctx := c.Request.Context()
	end := session.TradingDate(market, h.now())
	start := end.AddDate(0, 0, -2*days)

	rows, err := h.svc.GetPriceData(ctx, symbol, market, start, end)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, cache.ErrRemote) {
			status = http.StatusBadGateway
		}
		h.logger.Warn().Err(err).Int("status", status).Str("symbol", symbol).Str("market", string(market)).Msg("get price data")
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if today, changed := h.svc.ReconcileIntraday(ctx, symbol, market); changed {
		rows = mergeRow(rows, today)
	}
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no data"})
		return
	}
	if len(rows) > days {
		rows = rows[len(rows)-days:]
	}

	summary, err := calculator.Summarize(rows)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	out := make([]dailyRow, len(rows))
	for i, r := range rows {
		out[i] = dailyRow{
			Date: model.FormatDate(r.Date), Open: r.Open, High: r.High,
			Low: r.Low, Close: r.Close, Volume: r.Volume,
		}
	}
	c.JSON(http.StatusOK, dailyResponse{
		Symbol:  symbol,
		Market:  market,
		Start:   out[0].Date,
		End:     out[len(out)-1].Date,
		Rows:    out,
		Summary: summary,
	})
}

// mergeRow replaces the row sharing r's date or inserts r in date order.
func mergeRow(rows []model.PriceRow, r model.PriceRow) []model.PriceRow {
	for i := range rows {
		switch {
		case rows[i].Date.Equal(r.Date):
			rows[i] = r
			return rows
		case rows[i].Date.After(r.Date):
			rows = append(rows[:i], append([]model.PriceRow{r}, rows[i:]...)...)
			return rows
		}
	}
	return append(rows, r)
}

func (h *Handlers) GetStockNews(c *gin.Context) {
	symbol, market, ok := keyParams(c)
	if !ok {
		return
	}
	news, err := h.svc.GetNews(c.Request.Context(), symbol, market)
	if err != nil {
		h.logger.Error().Err(err).Str("symbol", symbol).Msg("get news")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if news == nil {
		news = []model.NewsItem{}
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "market": market, "news": news})
}
