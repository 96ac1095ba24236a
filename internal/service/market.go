package service

import (
	"context"

	"github.com/cloo-solutions/cryptoadvisor/internal/domain"
	"github.com/cloo-solutions/cryptoadvisor/internal/market"
	"github.com/cloo-solutions/cryptoadvisor/internal/news"
)

type MarketClient interface {
	Report(ctx context.Context, symbol string, days int) (*market.Report, error)
}

// MarketService fetches price reports and recent news for the dashboard
// endpoints, outside of the chat pipeline.
type MarketService struct {
	client MarketClient
	news   NewsFetcher
	retry  RetryPolicy
}

func NewMarketService(client MarketClient, newsFetcher NewsFetcher, retry RetryPolicy) *MarketService {
	return &MarketService{client: client, news: newsFetcher, retry: retry}
}

func (s *MarketService) Report(ctx context.Context, symbol string, days int) (*market.Report, error) {
	if _, err := market.CoinID(symbol); err != nil {
		return nil, err
	}
	var report *market.Report
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		report, err = s.client.Report(ctx, symbol, days)
		return err
	})
	if err != nil {
		if domain.CodeOf(err) != "" {
			return nil, err
		}
		return nil, domain.NewMarketDataError(err)
	}
	return report, nil
}

// News returns articles for the crypto terms found in text.
func (s *MarketService) News(ctx context.Context, q news.Query) ([]domain.Article, error) {
	if len(q.Keywords) == 0 {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "no cryptocurrency keywords found")
	}
	var articles []domain.Article
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		articles, err = s.news.Fetch(ctx, q)
		return err
	})
	if err != nil {
		return nil, domain.NewNewsFetchError(err)
	}
	if articles == nil {
		articles = []domain.Article{}
	}
	return articles, nil
}
