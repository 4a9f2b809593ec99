package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"readiness-sync/internal/domain"
	"readiness-sync/internal/repository"
	"readiness-sync/internal/websocket"
)

type mockVentureRepo struct {
	mu       sync.Mutex
	ventures map[string]*domain.Venture
	putErr   error
	puts     int
}

func newMockVentureRepo() *mockVentureRepo {
	return &mockVentureRepo{
		ventures: make(map[string]*domain.Venture),
	}
}

func (m *mockVentureRepo) Put(v *domain.Venture) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.ventures[v.ID] = v.Clone()
	return nil
}

func (m *mockVentureRepo) FindByID(id string) (*domain.Venture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, exists := m.ventures[id]; exists {
		return v.Clone(), nil
	}
	return nil, repository.ErrNotFound
}

func (m *mockVentureRepo) List() ([]*domain.Venture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Venture
	for _, v := range m.ventures {
		out = append(out, v.Clone())
	}
	return out, nil
}

func (m *mockVentureRepo) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ventures, id)
	return nil
}

type mockPreferenceRepo struct {
	active  string
	advisor string
	lastSub time.Time
}

func (m *mockPreferenceRepo) ActiveID() (string, error)    { return m.active, nil }
func (m *mockPreferenceRepo) SetActiveID(id string) error  { m.active = id; return nil }
func (m *mockPreferenceRepo) Advisor() (string, error)     { return m.advisor, nil }
func (m *mockPreferenceRepo) SetAdvisor(name string) error { m.advisor = name; return nil }

func (m *mockPreferenceRepo) LastSubmission() (time.Time, error)  { return m.lastSub, nil }
func (m *mockPreferenceRepo) SetLastSubmission(t time.Time) error { m.lastSub = t; return nil }

type mockHistoryRepo struct {
	mu      sync.Mutex
	entries map[string][]*domain.HistoryEntry
}

func newMockHistoryRepo() *mockHistoryRepo {
	return &mockHistoryRepo{entries: make(map[string][]*domain.HistoryEntry)}
}

func (m *mockHistoryRepo) Append(entry *domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.VentureID] = append(m.entries[entry.VentureID], entry)
	return nil
}

func (m *mockHistoryRepo) List(ventureID string) ([]*domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.HistoryEntry(nil), m.entries[ventureID]...), nil
}

func (m *mockHistoryRepo) DeleteAll(ventureID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, ventureID)
	return nil
}

// fakeTransport records every request and answers through respond.
type fakeTransport struct {
	mu       sync.Mutex
	requests []*domain.Request
	respond  func(n int, req *domain.Request) (*domain.Response, error)
}

func (f *fakeTransport) Send(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests) - 1
	respond := f.respond
	f.mu.Unlock()

	if respond == nil {
		return &domain.Response{Success: true}, nil
	}
	return respond(n, req)
}

func (f *fakeTransport) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeTransport) request(n int) *domain.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[n]
}

func (f *fakeTransport) actions() []domain.Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Action
	for _, r := range f.requests {
		out = append(out, r.Action)
	}
	return out
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

type countingInvalidator struct {
	mu    sync.Mutex
	count int
}

func (c *countingInvalidator) InvalidateAll() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

type mockRowRepo struct {
	mu   sync.Mutex
	rows map[repository.RowKind]map[string]domain.Row
}

func newMockRowRepo() *mockRowRepo {
	return &mockRowRepo{rows: make(map[repository.RowKind]map[string]domain.Row)}
}

func (m *mockRowRepo) Create(ctx context.Context, kind repository.RowKind, row *domain.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows[kind] == nil {
		m.rows[kind] = make(map[string]domain.Row)
	}
	m.rows[kind][row.RowID.String()] = *row
	return nil
}

func (m *mockRowRepo) FindByID(ctx context.Context, kind repository.RowKind, id string) (*domain.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[kind][id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &row, nil
}

func (m *mockRowRepo) Update(ctx context.Context, kind repository.RowKind, row *domain.Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[kind][row.RowID.String()]; !ok {
		return repository.ErrNotFound
	}
	m.rows[kind][row.RowID.String()] = *row
	return nil
}

func (m *mockRowRepo) List(ctx context.Context, kind repository.RowKind, limit int) ([]domain.Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Row
	for _, row := range m.rows[kind] {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowID < out[j].RowID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeBroadcaster struct {
	mu       sync.Mutex
	messages []*websocket.Message
}

func (f *fakeBroadcaster) Broadcast(msg *websocket.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msg)
	return nil
}
