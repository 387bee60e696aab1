// Package mocks holds testify mocks of the domain interfaces.
package mocks

import (
	"context"
	"io"

	"github.com/NewsFlash/internal/domain"
	"github.com/NewsFlash/internal/feed"
	"github.com/stretchr/testify/mock"
)

type MockTransformer struct {
	mock.Mock
}

func (m *MockTransformer) Transform(reader io.Reader) ([]domain.Article, *domain.PageInfo, error) {
	args := m.Called(reader)

	var articles []domain.Article
	if args.Get(0) != nil {
		articles = args.Get(0).([]domain.Article)
	}

	var pageInfo *domain.PageInfo
	if args.Get(1) != nil {
		pageInfo = args.Get(1).(*domain.PageInfo)
	}

	return articles, pageInfo, args.Error(2)
}

type MockArticleFetcher struct {
	mock.Mock
}

func (m *MockArticleFetcher) FetchPage(ctx context.Context, req feed.PageRequest) (feed.PageResult[domain.Article], error) {
	args := m.Called(ctx, req)
	var res feed.PageResult[domain.Article]
	if args.Get(0) != nil {
		res = args.Get(0).(feed.PageResult[domain.Article])
	}
	return res, args.Error(1)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Upsert(ctx context.Context, article *domain.Article) error {
	return m.Called(ctx, article).Error(0)
}

func (m *MockArchive) BulkUpsert(ctx context.Context, articles []domain.Article) error {
	return m.Called(ctx, articles).Error(0)
}

func (m *MockArchive) GetContentHashes(ctx context.Context, ids []string) (map[string]string, error) {
	args := m.Called(ctx, ids)
	var hashes map[string]string
	if args.Get(0) != nil {
		hashes = args.Get(0).(map[string]string)
	}
	return hashes, args.Error(1)
}

type MockPreferencePublisher struct {
	mock.Mock
}

func (m *MockPreferencePublisher) PublishInterests(ctx context.Context, event domain.InterestsChanged) error {
	return m.Called(ctx, event).Error(0)
}
