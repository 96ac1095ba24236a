package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/market"
	"github.com/cloo-solutions/cryptoadvisor/internal/news"
)

func TestMarketHandler_Symbols(t *testing.T) {
	w := httptest.NewRecorder()
	NewMarketHandler(new(MockMarketService), time.Hour, 5).Symbols(w, httptest.NewRequest(http.MethodGet, "/api/market", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"btc"`)
}

func TestMarketHandler_Report(t *testing.T) {
	svc := new(MockMarketService)
	svc.On("Report", mock.Anything, "btc", 7).Return(&market.Report{Symbol: "btc"}, nil)
	svc.On("Report", mock.Anything, "zzz", 0).Return(nil, domain.ErrUnknownSymbol)
	svc.On("Report", mock.Anything, "eth", 0).Return(nil, domain.NewMarketDataError(errors.New("429")))
	h := NewMarketHandler(svc, time.Hour, 5)

	tests := []struct {
		name   string
		symbol string
		query  string
		status int
	}{
		{"ok", "btc", "?days=7", http.StatusOK},
		{"bad days", "btc", "?days=-1", http.StatusBadRequest},
		{"unknown symbol", "zzz", "", http.StatusBadRequest},
		{"upstream failure", "eth", "", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := withRoute(httptest.NewRequest(http.MethodGet, "/api/market/"+tt.symbol+tt.query, nil), map[string]string{"symbol": tt.symbol})
			h.Report(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestMarketHandler_News(t *testing.T) {
	svc := new(MockMarketService)
	svc.On("News", mock.Anything, news.Query{Keywords: []string{"bitcoin", "ethereum"}, Window: time.Hour, Limit: 3}).
		Return([]domain.Article{{Headline: "ETF flows", PublishedAt: time.Unix(0, 0)}}, nil)

	w := httptest.NewRecorder()
	req := withRoute(httptest.NewRequest(http.MethodGet, "/api/news?coin=btc&coin=ethereum&limit=3", nil), nil)
	NewMarketHandler(svc, time.Hour, 5).News(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"headline":"ETF flows"`)
	assert.Contains(t, w.Body.String(), `"keywords":["bitcoin","ethereum"]`)
	svc.AssertExpectations(t)
}

func TestMarketHandler_News_NoKeywords(t *testing.T) {
	svc := new(MockMarketService)
	svc.On("News", mock.Anything, news.Query{Window: time.Hour, Limit: 5}).
		Return(nil, domain.NewDomainError(domain.ErrCodeValidation, "no coin keywords given"))

	w := httptest.NewRecorder()
	NewMarketHandler(svc, time.Hour, 5).News(w, withRoute(httptest.NewRequest(http.MethodGet, "/api/news", nil), nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
