package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/market"
	"github.com/cloo-solutions/cryptoadvisor/internal/news"
)

type MockMarketClient struct {
	mock.Mock
}

func (m *MockMarketClient) Report(ctx context.Context, symbol string, days int) (*market.Report, error) {
	args := m.Called(ctx, symbol, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*market.Report), args.Error(1)
}

func TestMarketService_Report(t *testing.T) {
	client := new(MockMarketClient)
	client.On("Report", mock.Anything, "btc", 30).Return(&market.Report{Symbol: "btc"}, nil)

	report, err := NewMarketService(client, nil, fastRetry).Report(context.Background(), "btc", 30)
	require.NoError(t, err)
	assert.Equal(t, "btc", report.Symbol)
}

func TestMarketService_Report_UnknownSymbol(t *testing.T) {
	client := new(MockMarketClient)

	_, err := NewMarketService(client, nil, fastRetry).Report(context.Background(), "notacoin", 30)
	assert.ErrorIs(t, err, domain.ErrUnknownSymbol)
	client.AssertNotCalled(t, "Report")
}

func TestMarketService_Report_UpstreamFailure(t *testing.T) {
	client := new(MockMarketClient)
	client.On("Report", mock.Anything, "eth", 7).Return(nil, &market.APIError{StatusCode: 503, Body: "busy"})

	_, err := NewMarketService(client, nil, fastRetry).Report(context.Background(), "eth", 7)
	assert.True(t, domain.HasCode(err, domain.ErrCodeMarketData))
	client.AssertNumberOfCalls(t, "Report", 3)
}

func TestMarketService_News(t *testing.T) {
	fetcher := new(MockNewsFetcher)
	q := news.Query{Keywords: []string{"bitcoin"}, Limit: 5}
	fetcher.On("Fetch", mock.Anything, q).Return(nil, nil)

	articles, err := NewMarketService(nil, fetcher, fastRetry).News(context.Background(), q)
	require.NoError(t, err)
	assert.NotNil(t, articles)

	_, err = NewMarketService(nil, fetcher, fastRetry).News(context.Background(), news.Query{})
	assert.True(t, domain.HasCode(err, domain.ErrCodeValidation))
}

func TestMarketService_News_Failure(t *testing.T) {
	fetcher := new(MockNewsFetcher)
	q := news.Query{Keywords: []string{"ethereum"}}
	fetcher.On("Fetch", mock.Anything, q).Return(nil, errors.New("timeout"))

	_, err := NewMarketService(nil, fetcher, fastRetry).News(context.Background(), q)
	assert.True(t, domain.HasCode(err, domain.ErrCodeNewsFetch))
}
