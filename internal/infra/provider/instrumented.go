package provider

import (
	"context"
	"time"

	"github.com/NewsFlash/internal/domain"
	"github.com/NewsFlash/internal/feed"
	"github.com/NewsFlash/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Instrumented records metrics and a trace span around every page fetch.
type Instrumented struct {
	source string
	next   domain.ArticleFetcher
}

func NewInstrumented(source string, next domain.ArticleFetcher) *Instrumented {
	return &Instrumented{source: source, next: next}
}

func (i *Instrumented) FetchPage(ctx context.Context, req feed.PageRequest) (feed.PageResult[domain.Article], error) {
	tr := otel.Tracer("news-feed")
	ctx, span := tr.Start(ctx, "FetchPage")
	defer span.End()
	span.SetAttributes(
		attribute.String("source", i.source),
		attribute.Int("page", req.Page),
	)

	start := time.Now()
	res, err := i.next.FetchPage(ctx, req)
	metrics.FetchDuration.WithLabelValues(i.source).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		metrics.PagesFetched.WithLabelValues(i.source, "error").Inc()
		return res, err
	}

	status := "success"
	if len(res.Items) == 0 {
		status = "empty"
	}
	span.SetAttributes(attribute.Int("articles", len(res.Items)))
	metrics.PagesFetched.WithLabelValues(i.source, status).Inc()
	metrics.ArticlesFetched.WithLabelValues(i.source).Add(float64(len(res.Items)))
	return res, nil
}
