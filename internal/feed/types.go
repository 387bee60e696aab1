package feed

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a fetch is already in flight for the feed.
	ErrBusy = errors.New("feed: fetch already in flight")
	// ErrClosed is returned by operations on a closed feed.
	ErrClosed = errors.New("feed: closed")
	// ErrExhausted is returned by LoadNextPage after the remote list ran out of pages.
	ErrExhausted = errors.New("feed: no more pages")
	// ErrFetchFailed matches every *FetchError.
	ErrFetchFailed = errors.New("feed: fetch failed")
)

// FetchError reports a failed page fetch. The feed state is left as it was before the call.
type FetchError struct {
	Op   string
	Page int
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("feed: %s page %d: %v", e.Op, e.Page, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetchFailed }

// PageRequest identifies one page of the remote list. Pages are 1-based.
type PageRequest struct {
	Page int
}

// PageResult is one page of items. An empty result means there are no more pages.
type PageResult[T any] struct {
	Items []T
}

// Fetcher loads a single page of a remote list.
type Fetcher[T any] interface {
	FetchPage(ctx context.Context, req PageRequest) (PageResult[T], error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc[T any] func(ctx context.Context, req PageRequest) (PageResult[T], error)

func (fn FetcherFunc[T]) FetchPage(ctx context.Context, req PageRequest) (PageResult[T], error) {
	return fn(ctx, req)
}

// Snapshot is a copy of a feed's state. Mutating it does not affect the feed.
type Snapshot[T any] struct {
	Items       []T
	CurrentPage int
	Loading     bool
	HasMore     bool
}

// EventKind identifies a feed notification.
type EventKind int

const (
	EventRefreshed EventKind = iota + 1
	EventAppended
	EventExhausted
	EventFetchFailed
)

func (k EventKind) String() string {
	switch k {
	case EventRefreshed:
		return "refreshed"
	case EventAppended:
		return "appended"
	case EventExhausted:
		return "exhausted"
	case EventFetchFailed:
		return "fetch_failed"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after every completed fetch.
type Event[T any] struct {
	Kind     EventKind
	Snapshot Snapshot[T]
	// Err is a *FetchError for EventFetchFailed.
	Err error
}
