package provider

import (
	"context"
	"log/slog"

	"github.com/NewsFlash/internal/domain"
	"github.com/NewsFlash/internal/feed"
	"github.com/NewsFlash/internal/infra/metrics"
)

// Archiving stores every successfully fetched page in an archive. Archive failures are
// logged and never fail the fetch.
type Archiving struct {
	source  string
	next    domain.ArticleFetcher
	archive domain.Archive
}

func NewArchiving(source string, next domain.ArticleFetcher, archive domain.Archive) *Archiving {
	return &Archiving{source: source, next: next, archive: archive}
}

func (a *Archiving) FetchPage(ctx context.Context, req feed.PageRequest) (feed.PageResult[domain.Article], error) {
	res, err := a.next.FetchPage(ctx, req)
	if err != nil || len(res.Items) == 0 {
		return res, err
	}

	if err := a.store(ctx, res.Items); err != nil {
		metrics.ArchiveErrors.WithLabelValues(a.source).Inc()
		slog.Warn("Failed to archive page", "source", a.source, "page", req.Page, "error", err)
	}
	return res, nil
}

func (a *Archiving) store(ctx context.Context, articles []domain.Article) error {
	// Dedup within page
	unique := make([]domain.Article, 0, len(articles))
	seen := make(map[string]bool, len(articles))
	ids := make([]string, 0, len(articles))
	for _, art := range articles {
		if seen[art.ID] {
			continue
		}
		seen[art.ID] = true
		if art.ContentHash == "" {
			art.ContentHash = art.ComputeHash()
		}
		unique = append(unique, art)
		ids = append(ids, art.ID)
	}

	existing, err := a.archive.GetContentHashes(ctx, ids)
	if err != nil {
		return err
	}

	var changed, fresh int
	for _, art := range unique {
		old, ok := existing[art.ID]
		switch {
		case !ok:
			fresh++
		case old != art.ContentHash:
			changed++
		}
	}

	if err := a.archive.BulkUpsert(ctx, unique); err != nil {
		return err
	}

	metrics.ArticlesArchived.WithLabelValues(a.source, "new").Add(float64(fresh))
	metrics.ArticlesArchived.WithLabelValues(a.source, "changed").Add(float64(changed))
	metrics.ArticlesArchived.WithLabelValues(a.source, "unchanged").Add(float64(len(unique) - fresh - changed))
	return nil
}
