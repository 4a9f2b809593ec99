package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"readiness-sync/internal/domain"
	"readiness-sync/internal/repository"
	"readiness-sync/internal/transport"
	"readiness-sync/internal/websocket"
	"readiness-sync/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

type CacheKind string

const (
	KindNameIndex      CacheKind = "name_index"
	KindAdvisorHistory CacheKind = "advisor_history"
)

const (
	defaultReadTimeout  = 8 * time.Second
	defaultNameIndexTTL = 5 * time.Minute
	defaultHistoryTTL   = 2 * time.Minute
)

type RowReader interface {
	ReadRows(ctx context.Context, action domain.Action, limit int) ([]domain.Row, error)
}

// RemoteReader performs a single listing call on the primary transport. Reads
// are never retried and never fall back to the beacon.
type RemoteReader struct {
	transport transport.Transport
	timeout   time.Duration
}

func NewRemoteReader(t transport.Transport, timeout time.Duration) *RemoteReader {
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}
	return &RemoteReader{transport: t, timeout: timeout}
}

func (r *RemoteReader) ReadRows(ctx context.Context, action domain.Action, limit int) ([]domain.Row, error) {
	resp, err := transport.Call(ctx, r.transport, &domain.Request{Action: action, Limit: limit}, r.timeout)
	if err != nil {
		return nil, err
	}
	if resp == nil || !resp.Success {
		msg := "listing failed"
		if resp != nil && resp.Error != "" {
			msg = resp.Error
		}
		return nil, errors.New(msg)
	}
	return resp.Rows, nil
}

type CacheOptions struct {
	NameIndexTTL   time.Duration
	HistoryTTL     time.Duration
	ReadTimeout    time.Duration
	NameIndexLimit int
	HistoryLimit   int
}

// ListingStore keeps cache entries beyond the life of one process.
type ListingStore interface {
	Get(kind string) (*domain.Listing, error)
	Put(listing *domain.Listing) error
	Delete(kind string) error
}

type ReadCacheOption func(*ReadCache)

func WithListingStore(store ListingStore) ReadCacheOption {
	return func(c *ReadCache) { c.store = store }
}

type cacheEntry struct {
	refs      []domain.VentureRef
	rows      []domain.Row
	fetchedAt time.Time
}

// ReadCache keeps the two remote listings for a short while, optionally
// backed by a ListingStore. Concurrent misses on the same kind share one
// read. A failed read yields an empty result and is not stored.
type ReadCache struct {
	reader     RowReader
	opts       CacheOptions
	now        func() time.Time
	logger     *zap.Logger
	store      ListingStore
	group      singleflight.Group
	mu         sync.Mutex
	entries    map[CacheKind]*cacheEntry
	generation map[CacheKind]uint64
}

func NewReadCache(reader RowReader, opts CacheOptions, log *zap.Logger, now func() time.Time, options ...ReadCacheOption) *ReadCache {
	if opts.NameIndexTTL <= 0 {
		opts.NameIndexTTL = defaultNameIndexTTL
	}
	if opts.HistoryTTL <= 0 {
		opts.HistoryTTL = defaultHistoryTTL
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaultReadTimeout
	}
	if opts.NameIndexLimit <= 0 {
		opts.NameIndexLimit = 200
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 500
	}
	if now == nil {
		now = time.Now
	}
	c := &ReadCache{
		reader:     reader,
		opts:       opts,
		now:        now,
		logger:     logger.OrNop(log).Named("cache"),
		entries:    make(map[CacheKind]*cacheEntry),
		generation: make(map[CacheKind]uint64),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *ReadCache) ttl(kind CacheKind) time.Duration {
	if kind == KindNameIndex {
		return c.opts.NameIndexTTL
	}
	return c.opts.HistoryTTL
}

// cached returns the entry held in memory, falling back to the listing
// store. Age is not checked here.
func (c *ReadCache) cached(kind CacheKind) (*cacheEntry, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gen := c.generation[kind]
	if entry, ok := c.entries[kind]; ok {
		return entry, gen, true
	}
	if c.store == nil {
		return nil, gen, false
	}

	listing, err := c.store.Get(string(kind))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			c.logger.Warn("failed to load cached listing", zap.String("kind", string(kind)), zap.Error(err))
		}
		return nil, gen, false
	}
	entry := &cacheEntry{refs: listing.Refs, rows: listing.Rows, fetchedAt: listing.FetchedAt}
	c.entries[kind] = entry
	return entry, gen, true
}

// get serves a fresh entry or reads one. The shared read is detached from
// the caller's context so one caller giving up does not empty the result
// for everyone else waiting on it.
func (c *ReadCache) get(ctx context.Context, kind CacheKind) *cacheEntry {
	entry, gen, ok := c.cached(kind)
	if ok && c.now().Sub(entry.fetchedAt) < c.ttl(kind) {
		return entry
	}

	ch := c.group.DoChan(string(kind), func() (interface{}, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.ReadTimeout)
		defer cancel()

		fresh, err := c.fetch(readCtx, kind)
		if err != nil {
			c.logger.Warn("listing read failed", zap.String("kind", string(kind)), zap.Error(err))
			return fresh, nil
		}

		c.mu.Lock()
		current := c.generation[kind] == gen
		if current {
			c.entries[kind] = fresh
		}
		c.mu.Unlock()
		if current {
			c.persist(kind, fresh)
		}
		return fresh, nil
	})

	select {
	case res := <-ch:
		return res.Val.(*cacheEntry)
	case <-ctx.Done():
		return &cacheEntry{}
	}
}

func (c *ReadCache) persist(kind CacheKind, entry *cacheEntry) {
	if c.store == nil {
		return
	}
	err := c.store.Put(&domain.Listing{
		Kind:      string(kind),
		FetchedAt: entry.fetchedAt,
		Refs:      entry.refs,
		Rows:      entry.rows,
	})
	if err != nil {
		c.logger.Warn("failed to persist listing", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (c *ReadCache) fetch(ctx context.Context, kind CacheKind) (*cacheEntry, error) {
	entry := &cacheEntry{fetchedAt: c.now()}

	if kind == KindAdvisorHistory {
		rows, err := c.reader.ReadRows(ctx, domain.ActionList, c.opts.HistoryLimit)
		if err != nil {
			return entry, err
		}
		entry.rows = rows
		return entry, nil
	}

	var assessed, qualified []domain.Row
	var g errgroup.Group
	g.Go(func() error {
		rows, err := c.reader.ReadRows(ctx, domain.ActionList, c.opts.NameIndexLimit)
		assessed = rows
		return err
	})
	g.Go(func() error {
		rows, err := c.reader.ReadRows(ctx, domain.ActionListQualifications, c.opts.NameIndexLimit)
		qualified = rows
		return err
	})
	err := g.Wait()

	entry.refs = mergeNameIndex(qualified, assessed)
	return entry, err
}

// mergeNameIndex lists each venture name once. Qualification entries win
// over assessment entries with the same name.
func mergeNameIndex(qualified, assessed []domain.Row) []domain.VentureRef {
	seen := make(map[string]bool)
	var refs []domain.VentureRef

	add := func(rows []domain.Row, source string) {
		for _, row := range rows {
			name := strings.TrimSpace(row.VentureName)
			key := strings.ToLower(name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			src := source
			if row.Source != "" {
				src = row.Source
			}
			refs = append(refs, domain.VentureRef{
				Name:      name,
				Portfolio: strings.TrimSpace(row.Portfolio),
				Source:    src,
				Timestamp: row.Date(),
			})
		}
	}
	add(qualified, domain.SourceQualification)
	add(assessed, domain.SourceAssessment)

	sort.SliceStable(refs, func(i, j int) bool {
		return strings.ToLower(refs[i].Name) < strings.ToLower(refs[j].Name)
	})
	return refs
}

// VentureNames returns the merged name index.
func (c *ReadCache) VentureNames(ctx context.Context) []domain.VentureRef {
	refs := c.get(ctx, KindNameIndex).refs
	out := make([]domain.VentureRef, len(refs))
	copy(out, refs)
	return out
}

// Search filters the name index by a case-insensitive substring.
func (c *ReadCache) Search(ctx context.Context, query string) []domain.VentureRef {
	refs := c.VentureNames(ctx)
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return refs
	}

	var out []domain.VentureRef
	for _, ref := range refs {
		if strings.Contains(strings.ToLower(ref.Name), query) {
			out = append(out, ref)
		}
	}
	return out
}

// PortfolioFor answers from whatever name index is cached, however old. It
// never triggers a read.
func (c *ReadCache) PortfolioFor(name string) (string, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return "", false
	}

	entry, _, ok := c.cached(KindNameIndex)
	if !ok {
		return "", false
	}
	for _, ref := range entry.refs {
		if strings.ToLower(ref.Name) == key && ref.Portfolio != "" {
			return ref.Portfolio, true
		}
	}
	return "", false
}

// AdvisorSubmissions lists an advisor's rows, newest assessment first.
func (c *ReadCache) AdvisorSubmissions(ctx context.Context, advisor string) []domain.Row {
	advisor = strings.TrimSpace(advisor)
	if advisor == "" {
		return nil
	}

	var out []domain.Row
	for _, row := range c.get(ctx, KindAdvisorHistory).rows {
		if strings.EqualFold(strings.TrimSpace(row.AdvisorName), advisor) {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return parseRowDate(out[i].Date()).After(parseRowDate(out[j].Date()))
	})
	return out
}

func (c *ReadCache) Invalidate(kind CacheKind) {
	c.mu.Lock()
	delete(c.entries, kind)
	c.generation[kind]++
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Delete(string(kind)); err != nil {
		c.logger.Warn("failed to drop cached listing", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func (c *ReadCache) InvalidateAll() {
	c.Invalidate(KindNameIndex)
	c.Invalidate(KindAdvisorHistory)
}

// HandleFeedMessage drops both listings when another client writes a row.
func (c *ReadCache) HandleFeedMessage(msg *websocket.Message) {
	var payload websocket.RowChangePayload
	if err := msg.UnmarshalPayload(&payload); err != nil {
		c.logger.Debug("undecodable feed payload", zap.Error(err))
	}
	c.logger.Debug("remote row changed",
		zap.String("type", string(msg.Type)),
		zap.String("row_id", payload.RowID),
	)
	c.InvalidateAll()
}

var rowDateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseRowDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range rowDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
