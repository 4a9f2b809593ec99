package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"readiness-sync/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*VentureStore, *mockVentureRepo, *mockPreferenceRepo, *fakeClock) {
	t.Helper()
	ventures := newMockVentureRepo()
	prefs := &mockPreferenceRepo{}
	clock := newFakeClock()
	return NewVentureStore(ventures, prefs, newMockHistoryRepo(), nil, clock.Now), ventures, prefs, clock
}

func TestVentureStore_CreateAllocatesIDs(t *testing.T) {
	store, ventures, prefs, _ := newTestStore(t)
	sc := NewSyncContext()

	id := store.Create(sc, "  Acme ")
	require.True(t, sc.Active())
	assert.Equal(t, id, sc.Venture.ID)
	assert.Equal(t, "Acme", sc.Venture.Name)
	assert.NotEmpty(t, sc.Venture.RemoteVentureID)
	assert.Equal(t, 1, sc.Venture.AssessmentNumber)
	assert.False(t, sc.Venture.Bound())
	assert.Equal(t, id, prefs.active)

	other := store.Create(NewSyncContext(), "Acme")
	assert.NotEqual(t, id, other)
	assert.Len(t, ventures.ventures, 2)
}

func TestVentureStore_CreateSavesScoredActiveVenture(t *testing.T) {
	store, ventures, _, _ := newTestStore(t)
	sc := NewSyncContext()

	first := store.Create(sc, "Acme")
	sc.Venture.Scores[domain.CategoryIP] = 4
	store.Create(sc, "Globex")

	saved, err := ventures.FindByID(first)
	require.NoError(t, err)
	assert.Equal(t, 4, saved.Scores[domain.CategoryIP])
	assert.Equal(t, "Globex", sc.Venture.Name)
}

func TestVentureStore_LoadUnknown(t *testing.T) {
	store, _, _, _ := newTestStore(t)
	sc := NewSyncContext()

	assert.False(t, store.Load(sc, "v_missing"))
	assert.False(t, sc.Active())
}

func TestVentureStore_LoadAndRestore(t *testing.T) {
	store, _, _, _ := newTestStore(t)
	sc := NewSyncContext()
	id := store.Create(sc, "Acme")
	require.NoError(t, store.SetScore(sc, domain.CategoryMarket, 2))

	fresh := NewSyncContext()
	require.True(t, store.Restore(fresh))
	assert.Equal(t, id, fresh.Venture.ID)
	assert.Equal(t, 2, fresh.Venture.Scores[domain.CategoryMarket])

	other := NewSyncContext()
	require.True(t, store.Load(other, id))
	assert.Equal(t, "Acme", other.Venture.Name)
}

func TestVentureStore_ListMostRecentFirst(t *testing.T) {
	store, _, _, clock := newTestStore(t)

	a := NewSyncContext()
	store.Create(a, "Alpha")
	clock.Advance(time.Minute)
	b := NewSyncContext()
	store.Create(b, "Beta")
	clock.Advance(time.Minute)
	store.Save(a)

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "Alpha", list[0].Name)
	assert.Equal(t, "Beta", list[1].Name)
}

func TestVentureStore_DeleteActiveClearsPointer(t *testing.T) {
	store, ventures, prefs, _ := newTestStore(t)
	sc := NewSyncContext()
	id := store.Create(sc, "Acme")
	store.AppendHistory(&domain.HistoryEntry{VentureID: id})

	store.Delete(sc, id)
	assert.False(t, sc.Active())
	assert.Empty(t, prefs.active)
	assert.Empty(t, ventures.ventures)
	assert.Empty(t, store.History(id))
}

func TestVentureStore_DeleteInactiveKeepsActive(t *testing.T) {
	store, _, _, _ := newTestStore(t)
	other := store.Create(NewSyncContext(), "Other")
	sc := NewSyncContext()
	store.Create(sc, "Acme")

	store.Delete(sc, other)
	assert.True(t, sc.Active())
	assert.Equal(t, "Acme", sc.Venture.Name)
}

func TestVentureStore_SetScore(t *testing.T) {
	store, _, _, clock := newTestStore(t)
	sc := NewSyncContext()

	var verr *ValidationError
	assert.True(t, errors.As(store.SetScore(sc, domain.CategoryIP, 1), &verr))

	store.Create(sc, "Acme")
	assert.True(t, errors.As(store.SetScore(sc, domain.CategoryIP, 10), &verr))
	assert.True(t, errors.As(store.SetScore(sc, domain.CategoryRegulatory, 3), &verr))
	assert.Nil(t, sc.Venture.AssessedAt)

	require.NoError(t, store.SetScore(sc, domain.CategoryIP, 3))
	require.NotNil(t, sc.Venture.AssessedAt)
	assert.True(t, sc.Venture.AssessedAt.Equal(clock.Now()))

	require.NoError(t, store.SetScore(sc, domain.CategoryIP, 0))
	_, scored := sc.Venture.Scores[domain.CategoryIP]
	assert.False(t, scored)
}

func TestVentureStore_ExportImport(t *testing.T) {
	for _, format := range []ExportFormat{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			store, _, _, _ := newTestStore(t)
			sc := NewSyncContext()
			id := store.Create(sc, "Acme")
			require.NoError(t, store.SetScore(sc, domain.CategoryTeam, 6))
			sc.Venture.Bind("42")
			store.Save(sc)

			data, err := store.Export(sc, id, format)
			require.NoError(t, err)

			imported, err := store.Import(data, format)
			require.NoError(t, err)
			assert.NotEqual(t, id, imported.ID)
			assert.NotEqual(t, sc.Venture.RemoteVentureID, imported.RemoteVentureID)
			assert.Equal(t, "Acme", imported.Name)
			assert.Equal(t, 6, imported.Scores[domain.CategoryTeam])
			assert.False(t, imported.Bound())
			assert.Nil(t, imported.LastSubmittedAt)
			assert.Len(t, store.List(), 2)
		})
	}
}

func TestVentureStore_ImportRejectsNameless(t *testing.T) {
	store, _, _, _ := newTestStore(t)

	_, err := store.Import([]byte(`{"scores":{"IP":3}}`), FormatJSON)
	var verr *ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestParseExportFormat(t *testing.T) {
	f, err := ParseExportFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	f, err = ParseExportFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseExportFormat("xml")
	assert.Error(t, err)
}

func TestVentureStore_LoadFillsAdvisorFromPreference(t *testing.T) {
	h := newHarness(t, nil)
	h.primary.respond = ackRow("7")

	alpha := h.store.Create(h.sc, "Alpha")
	h.store.Create(h.sc, "Beta")
	h.store.SetAdvisor(h.sc, "Jane")

	require.True(t, h.store.Load(h.sc, alpha))
	assert.Equal(t, "Jane", h.sc.Venture.Advisor)

	saved, err := h.ventures.FindByID(alpha)
	require.NoError(t, err)
	assert.Equal(t, "Jane", saved.Advisor)

	require.NoError(t, h.store.SetScore(h.sc, domain.CategoryMarket, 2))
	result, err := h.submitter.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.ActionCreate, result.Action)
	assert.Equal(t, "Jane", h.primary.request(0).AdvisorName)
}

func TestVentureStore_LoadKeepsOwnAdvisor(t *testing.T) {
	store, _, _, _ := newTestStore(t)
	sc := NewSyncContext()

	store.SetAdvisor(sc, "Omar")
	id := store.Create(sc, "Acme")
	store.SetAdvisor(NewSyncContext(), "Jane")

	require.True(t, store.Load(sc, id))
	assert.Equal(t, "Omar", sc.Venture.Advisor)
}
