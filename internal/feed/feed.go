// Package feed implements a paginated remote list: it owns the page cursor and the
// accumulated items of one remote resource and tells its consumers when new data arrives.
package feed

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/NewsFlash/pkg/logging"
)

const (
	defaultPrefetchDistance = 3
	subscriberBuffer        = 16
)

// Feed owns the pagination state of a single remote list.
//
// All state is confined to the goroutine started by New. Public methods hand closures to
// that goroutine and fetches report back to it before anything is mutated, so no locks
// guard the fields below.
type Feed[T any] struct {
	name     string
	fetcher  Fetcher[T]
	prefetch int
	timeout  time.Duration
	sampler  *logging.ErrorSampler
	errKey   string

	ctx     context.Context
	cancel  context.CancelFunc
	cmds    chan func()
	results chan result[T]
	done    chan struct{}
	once    sync.Once

	items   []T
	page    int
	skip    int // pages already delivered by the last refresh
	loading bool
	hasMore bool
	armedAt int
	subs    map[int]chan Event[T]
	nextSub int
}

type opKind int

const (
	opRefresh opKind = iota + 1
	opNext
)

func (k opKind) String() string {
	if k == opRefresh {
		return "refresh"
	}
	return "next"
}

type result[T any] struct {
	kind    opKind
	page    int
	items   []T
	err     error
	reply   chan error
	elapsed time.Duration
}

// Option configures a Feed.
type Option func(*config)

type config struct {
	name     string
	prefetch int
	timeout  time.Duration
	sampler  *logging.ErrorSampler
	errKey   string
}

// WithName labels the feed in logs.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithPrefetchDistance sets how many rows before the end NearEnd starts loading.
func WithPrefetchDistance(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.prefetch = n
		}
	}
}

// WithFetchTimeout bounds every fetch issued by the feed.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithSamplerKey sets the key failures are counted under. Feeds sharing a sampler and a
// key, such as every feed of one source, log a failing upstream once per interval.
// Defaults to the feed name.
func WithSamplerKey(key string) Option {
	return func(c *config) { c.errKey = key }
}

// WithErrorSampler shares an error sampler between feeds so repeated failures of the same
// source are logged once per interval.
func WithErrorSampler(s *logging.ErrorSampler) Option {
	return func(c *config) { c.sampler = s }
}

// New creates a feed backed by fetcher and starts its owner goroutine.
// Call Close when the feed is no longer displayed.
func New[T any](fetcher Fetcher[T], opts ...Option) *Feed[T] {
	cfg := config{
		name:     "feed",
		prefetch: defaultPrefetchDistance,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.errKey == "" {
		cfg.errKey = cfg.name
	}
	if cfg.sampler == nil {
		cfg.sampler = logging.NewErrorSampler(10)
	}

	ctx, cancel := context.WithCancel(context.Background())
	f := &Feed[T]{
		name:     cfg.name,
		fetcher:  fetcher,
		prefetch: cfg.prefetch,
		timeout:  cfg.timeout,
		sampler:  cfg.sampler,
		errKey:   cfg.errKey,
		ctx:      ctx,
		cancel:   cancel,
		cmds:     make(chan func()),
		results:  make(chan result[T]),
		done:     make(chan struct{}),
		page:     1,
		hasMore:  true,
		armedAt:  -1,
		subs:     make(map[int]chan Event[T]),
	}
	go f.run()
	return f
}

func (f *Feed[T]) run() {
	defer close(f.done)
	for {
		select {
		case <-f.ctx.Done():
			// A key of its own would otherwise stay in a shared sampler forever.
			if f.errKey == f.name {
				f.sampler.Reset(f.errKey)
			}
			for id, ch := range f.subs {
				close(ch)
				delete(f.subs, id)
			}
			return
		case fn := <-f.cmds:
			fn()
		case r := <-f.results:
			f.apply(r)
		}
	}
}

// exec runs fn on the owner goroutine and waits for it to finish.
func (f *Feed[T]) exec(fn func()) error {
	ran := make(chan struct{})
	select {
	case f.cmds <- func() { fn(); close(ran) }:
	case <-f.done:
		return ErrClosed
	}
	<-ran
	return nil
}

// Refresh drops the accumulated items and reloads the first page.
// It returns ErrBusy if another fetch is in flight.
func (f *Feed[T]) Refresh(ctx context.Context) error {
	return f.start(ctx, opRefresh)
}

// LoadNextPage fetches the page at the cursor and appends it. The cursor moves by one on
// every successful fetch, including the empty page that exhausts the feed. It returns ErrBusy if another fetch is in flight and ErrExhausted
// once an empty page has been seen.
func (f *Feed[T]) LoadNextPage(ctx context.Context) error {
	return f.start(ctx, opNext)
}

func (f *Feed[T]) start(ctx context.Context, kind opKind) error {
	reply := make(chan error, 1)
	var err error
	if execErr := f.exec(func() { err = f.begin(kind, reply) }); execErr != nil {
		return execErr
	}
	if err != nil {
		return err
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
		return ErrClosed
	}
}

// begin must run on the owner goroutine.
func (f *Feed[T]) begin(kind opKind, reply chan error) error {
	if f.loading {
		return ErrBusy
	}
	page := 1
	if kind == opNext {
		if !f.hasMore {
			return ErrExhausted
		}
		page = f.page + f.skip
	}
	f.loading = true

	go func() {
		ctx := f.ctx
		if f.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, f.timeout)
			defer cancel()
		}

		started := time.Now()
		res, err := f.fetcher.FetchPage(ctx, PageRequest{Page: page})
		r := result[T]{
			kind:    kind,
			page:    page,
			items:   res.Items,
			err:     err,
			reply:   reply,
			elapsed: time.Since(started),
		}

		select {
		case f.results <- r:
		case <-f.ctx.Done():
		}
	}()
	return nil
}

// apply must run on the owner goroutine.
func (f *Feed[T]) apply(r result[T]) {
	if f.ctx.Err() != nil {
		return
	}
	f.loading = false

	if r.err != nil {
		ferr := &FetchError{Op: r.kind.String(), Page: r.page, Err: r.err}
		if logged, n := f.sampler.Observe(f.errKey); logged {
			slog.Warn("Feed fetch failed",
				"feed", f.name, "op", ferr.Op, "page", r.page,
				"occurrences", n, "error", r.err)
		}
		f.publish(EventFetchFailed, ferr)
		f.reply(r.reply, ferr)
		return
	}
	f.sampler.Reset(f.errKey)

	kind := EventAppended
	switch r.kind {
	case opRefresh:
		f.items = slices.Clone(r.items)
		f.page = 1
		f.skip = 1
		f.armedAt = -1
		f.hasMore = len(r.items) > 0
		kind = EventRefreshed
		if !f.hasMore {
			f.skip = 0
		}
	case opNext:
		f.page++
		if len(r.items) == 0 {
			f.hasMore = false
			kind = EventExhausted
			break
		}
		f.items = append(f.items, r.items...)
	}

	slog.Debug("Feed page applied",
		"feed", f.name, "op", r.kind.String(), "page", r.page,
		"received", len(r.items), "total", len(f.items), "duration", r.elapsed)

	f.publish(kind, nil)
	if kind == EventRefreshed && !f.hasMore {
		f.publish(EventExhausted, nil)
	}
	f.reply(r.reply, nil)
}

func (f *Feed[T]) reply(ch chan error, err error) {
	if ch != nil {
		ch <- err
	}
}

// RequestItemAt is called by a rendering surface for each visible row. Rows inside the
// loaded range return their item. The row right after the last item starts one background
// page load; asking for the same row again does not start another.
func (f *Feed[T]) RequestItemAt(index int) (T, bool) {
	var item T
	var ok bool
	_ = f.exec(func() {
		switch {
		case index >= 0 && index < len(f.items):
			item, ok = f.items[index], true
		case index == len(f.items):
			f.trigger(index)
		}
	})
	return item, ok
}

// NearEnd reports the last row the surface has on screen. When it falls within the
// prefetch distance of the end, the next page is loaded in the background.
func (f *Feed[T]) NearEnd(lastVisible int) {
	_ = f.exec(func() {
		if lastVisible >= len(f.items)-f.prefetch {
			f.trigger(len(f.items))
		}
	})
}

// trigger must run on the owner goroutine.
func (f *Feed[T]) trigger(pos int) {
	if !f.hasMore || f.loading || f.armedAt == pos {
		return
	}
	f.armedAt = pos
	_ = f.begin(opNext, nil)
}

// RowCount is the number of rows a list surface should show: every item plus a trailing
// loading row while more pages may exist.
func (f *Feed[T]) RowCount() int {
	var n int
	_ = f.exec(func() {
		n = len(f.items)
		if f.hasMore {
			n++
		}
	})
	return n
}

// Snapshot returns a copy of the current state.
func (f *Feed[T]) Snapshot() Snapshot[T] {
	var s Snapshot[T]
	_ = f.exec(func() { s = f.snapshot() })
	return s
}

func (f *Feed[T]) snapshot() Snapshot[T] {
	return Snapshot[T]{
		Items:       slices.Clone(f.items),
		CurrentPage: f.page,
		Loading:     f.loading,
		HasMore:     f.hasMore,
	}
}

// Subscribe registers for feed events. The returned channel is closed when the feed is
// closed or the cancel func is called. Events are dropped for subscribers that fall
// behind; the snapshot carried by the next event is always complete.
func (f *Feed[T]) Subscribe() (<-chan Event[T], func()) {
	ch := make(chan Event[T], subscriberBuffer)
	id := -1
	if err := f.exec(func() {
		id = f.nextSub
		f.nextSub++
		f.subs[id] = ch
	}); err != nil {
		close(ch)
		return ch, func() {}
	}

	return ch, func() {
		_ = f.exec(func() {
			if c, ok := f.subs[id]; ok {
				close(c)
				delete(f.subs, id)
			}
		})
	}
}

// publish must run on the owner goroutine.
func (f *Feed[T]) publish(kind EventKind, err error) {
	if len(f.subs) == 0 {
		return
	}
	ev := Event[T]{Kind: kind, Snapshot: f.snapshot(), Err: err}
	for id, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("Dropping feed event for slow subscriber", "feed", f.name, "subscriber", id, "event", kind)
		}
	}
}

// Close stops the feed. A fetch still in flight is cancelled and its result discarded.
func (f *Feed[T]) Close() {
	f.once.Do(f.cancel)
	<-f.done
}

// Name returns the label given with WithName.
func (f *Feed[T]) Name() string {
	return f.name
}
