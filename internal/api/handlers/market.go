package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cloo-solutions/cryptoadvisor/internal/api"
	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/market"
	"github.com/cloo-solutions/cryptoadvisor/internal/news"
)

type MarketService interface {
	Report(ctx context.Context, symbol string, days int) (*market.Report, error)
	News(ctx context.Context, q news.Query) ([]domain.Article, error)
}

type MarketHandler struct {
	svc        MarketService
	newsWindow time.Duration
	newsLimit  int
}

func NewMarketHandler(svc MarketService, newsWindow time.Duration, newsLimit int) *MarketHandler {
	return &MarketHandler{svc: svc, newsWindow: newsWindow, newsLimit: newsLimit}
}

type SymbolsResponse struct {
	Symbols []string `json:"symbols"`
}

// Symbols handles GET /api/market.
func (h *MarketHandler) Symbols(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, SymbolsResponse{Symbols: market.Symbols()})
}

// Report handles GET /api/market/{symbol}?days=.
func (h *MarketHandler) Report(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			api.Error(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}

	report, err := h.svc.Report(r.Context(), chi.URLParam(r, "symbol"), days)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, report)
}

type NewsResponse struct {
	Keywords []string          `json:"keywords"`
	Articles []ArticleResponse `json:"articles"`
}

// News handles GET /api/news?q= or ?coin=btc&coin=eth.
func (h *MarketHandler) News(w http.ResponseWriter, r *http.Request) {
	var keywords []string
	for _, coin := range r.URL.Query()["coin"] {
		if name, ok := news.CoinName(coin); ok {
			keywords = append(keywords, name)
		} else if coin = strings.TrimSpace(coin); coin != "" {
			keywords = append(keywords, strings.ToLower(coin))
		}
	}
	if q := r.URL.Query().Get("q"); q != "" {
		keywords = append(keywords, news.ExtractKeywords(q)...)
	}

	limit := h.newsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			api.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	articles, err := h.svc.News(r.Context(), news.Query{Keywords: keywords, Window: h.newsWindow, Limit: limit})
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if keywords == nil {
		keywords = []string{}
	}
	api.Success(w, http.StatusOK, NewsResponse{Keywords: keywords, Articles: articlesToResponse(articles)})
}
