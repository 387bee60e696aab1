package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/NewsFlash/internal/domain"
	"github.com/NewsFlash/internal/domain/mocks"
	"github.com/NewsFlash/internal/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestArchiving_StoresFetchedPage(t *testing.T) {
	page := feed.PageResult[domain.Article]{Items: []domain.Article{
		{ID: "a", Title: "A"},
		{ID: "b", Title: "B"},
		{ID: "a", Title: "A"},
	}}

	next := new(mocks.MockArticleFetcher)
	next.On("FetchPage", mock.Anything, feed.PageRequest{Page: 2}).Return(page, nil)

	archive := new(mocks.MockArchive)
	archive.On("GetContentHashes", mock.Anything, []string{"a", "b"}).Return(map[string]string{"a": "stale"}, nil)
	archive.On("BulkUpsert", mock.Anything, mock.MatchedBy(func(articles []domain.Article) bool {
		return len(articles) == 2 && articles[0].ContentHash != "" && articles[1].ContentHash != ""
	})).Return(nil)

	res, err := NewArchiving("newsapi", next, archive).FetchPage(context.Background(), feed.PageRequest{Page: 2})

	require.NoError(t, err)
	assert.Equal(t, page, res, "callers see the page exactly as fetched")
	archive.AssertExpectations(t)
}

func TestArchiving_ArchiveFailureDoesNotFailFetch(t *testing.T) {
	page := feed.PageResult[domain.Article]{Items: []domain.Article{{ID: "a"}}}

	next := new(mocks.MockArticleFetcher)
	next.On("FetchPage", mock.Anything, mock.Anything).Return(page, nil)

	archive := new(mocks.MockArchive)
	archive.On("GetContentHashes", mock.Anything, mock.Anything).Return(nil, errors.New("mongo down"))

	res, err := NewArchiving("newsapi", next, archive).FetchPage(context.Background(), feed.PageRequest{Page: 1})

	require.NoError(t, err)
	assert.Len(t, res.Items, 1)
	archive.AssertNotCalled(t, "BulkUpsert", mock.Anything, mock.Anything)
}

func TestArchiving_SkipsFailedAndEmptyPages(t *testing.T) {
	next := new(mocks.MockArticleFetcher)
	next.On("FetchPage", mock.Anything, feed.PageRequest{Page: 1}).Return(nil, errors.New("timeout"))
	next.On("FetchPage", mock.Anything, feed.PageRequest{Page: 2}).Return(feed.PageResult[domain.Article]{}, nil)

	archive := new(mocks.MockArchive)
	a := NewArchiving("newsapi", next, archive)

	_, err := a.FetchPage(context.Background(), feed.PageRequest{Page: 1})
	assert.Error(t, err)
	_, err = a.FetchPage(context.Background(), feed.PageRequest{Page: 2})
	assert.NoError(t, err)

	archive.AssertExpectations(t)
}

func TestInstrumented_PassesThrough(t *testing.T) {
	page := feed.PageResult[domain.Article]{Items: []domain.Article{{ID: "a"}}}
	boom := errors.New("boom")

	next := new(mocks.MockArticleFetcher)
	next.On("FetchPage", mock.Anything, feed.PageRequest{Page: 1}).Return(page, nil)
	next.On("FetchPage", mock.Anything, feed.PageRequest{Page: 2}).Return(nil, boom)

	i := NewInstrumented("newsapi", next)

	res, err := i.FetchPage(context.Background(), feed.PageRequest{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, page, res)

	_, err = i.FetchPage(context.Background(), feed.PageRequest{Page: 2})
	assert.ErrorIs(t, err, boom)
}
