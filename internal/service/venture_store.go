package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"readiness-sync/internal/domain"
	"readiness-sync/internal/repository"
	"readiness-sync/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type ExportFormat string

const (
	FormatJSON ExportFormat = "json"
	FormatYAML ExportFormat = "yaml"
)

func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported format %q", s)
}

// VentureStore is the durable venture collection plus the active pointer.
// Every mutation is written through immediately. Storage failures are
// logged as PersistenceWarning and never block the session.
type VentureStore struct {
	ventures repository.VentureRepository
	prefs    repository.PreferenceRepository
	history  repository.HistoryRepository
	logger   *zap.Logger
	now      func() time.Time
}

func NewVentureStore(
	ventures repository.VentureRepository,
	prefs repository.PreferenceRepository,
	history repository.HistoryRepository,
	log *zap.Logger,
	now func() time.Time,
) *VentureStore {
	if now == nil {
		now = time.Now
	}
	return &VentureStore{
		ventures: ventures,
		prefs:    prefs,
		history:  history,
		logger:   logger.OrNop(log),
		now:      now,
	}
}

func newVentureID() string {
	return "v_" + uuid.NewString()
}

// Create allocates a new venture and makes it active. An active venture that
// already carries scores is saved first.
func (s *VentureStore) Create(sc *SyncContext, name string) string {
	if sc.Active() && sc.Venture.Scores.Assessed() {
		s.Save(sc)
	}

	v := domain.NewVenture(newVentureID(), uuid.NewString(), strings.TrimSpace(name), s.now())
	v.Advisor = s.Advisor()
	sc.Venture = v

	s.put(v, "create")
	s.setActive(v.ID)
	return v.ID
}

func (s *VentureStore) Load(sc *SyncContext, id string) bool {
	v, err := s.ventures.FindByID(id)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.warn("load", id, err)
		}
		return false
	}

	dirty := false
	if v.RemoteVentureID == "" {
		v.RemoteVentureID = uuid.NewString()
		dirty = true
	}
	if v.Advisor == "" {
		if v.Advisor = s.Advisor(); v.Advisor != "" {
			dirty = true
		}
	}
	if dirty {
		s.put(v, "load")
	}

	sc.Venture = v
	s.setActive(v.ID)
	return true
}

// Restore reloads whatever venture the active pointer names.
func (s *VentureStore) Restore(sc *SyncContext) bool {
	id, err := s.prefs.ActiveID()
	if err != nil {
		s.warn("restore", "", err)
		return false
	}
	if id == "" {
		return false
	}
	return s.Load(sc, id)
}

func (s *VentureStore) Save(sc *SyncContext) {
	if !sc.Active() {
		return
	}
	sc.Venture.UpdatedAt = s.now()
	s.put(sc.Venture, "save")
}

func (s *VentureStore) Delete(sc *SyncContext, id string) {
	if err := s.ventures.Delete(id); err != nil {
		s.warn("delete", id, err)
	}
	if err := s.history.DeleteAll(id); err != nil {
		s.warn("delete history", id, err)
	}

	if sc.Active() && sc.Venture.ID == id {
		sc.Clear()
		s.setActive("")
	}
}

// List returns a fresh snapshot, most recently updated first.
func (s *VentureStore) List() []*domain.Venture {
	ventures, err := s.ventures.List()
	if err != nil {
		s.warn("list", "", err)
		return nil
	}
	sort.SliceStable(ventures, func(i, j int) bool {
		return ventures[i].UpdatedAt.After(ventures[j].UpdatedAt)
	})
	return ventures
}

func (s *VentureStore) SetScore(sc *SyncContext, c domain.Category, level int) error {
	v, err := activeVenture(sc)
	if err != nil {
		return err
	}
	if !c.Enabled(v.IsHealthTrack) {
		return &ValidationError{Field: "category", Message: fmt.Sprintf("%s is not assessed on this track", c)}
	}
	if level < domain.MinLevel || level > domain.MaxLevel {
		return &ValidationError{Field: "level", Message: fmt.Sprintf("must be between %d and %d", domain.MinLevel, domain.MaxLevel)}
	}

	if level == 0 {
		delete(v.Scores, c)
	} else {
		v.Scores[c] = level
		if v.AssessedAt == nil {
			now := s.now()
			v.AssessedAt = &now
		}
	}
	s.Save(sc)
	return nil
}

func (s *VentureStore) SetName(sc *SyncContext, name string) error {
	v, err := activeVenture(sc)
	if err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return &ValidationError{Field: "ventureName", Message: "is required"}
	}
	v.Name = name
	s.Save(sc)
	return nil
}

func (s *VentureStore) SetPortfolio(sc *SyncContext, portfolio string) error {
	v, err := activeVenture(sc)
	if err != nil {
		return err
	}
	v.Portfolio = strings.TrimSpace(portfolio)
	s.Save(sc)
	return nil
}

func (s *VentureStore) SetHealthTrack(sc *SyncContext, on bool) error {
	v, err := activeVenture(sc)
	if err != nil {
		return err
	}
	v.IsHealthTrack = on
	s.Save(sc)
	return nil
}

// SetAdvisor stores the advisor preference and stamps it on the active
// venture, if any.
func (s *VentureStore) SetAdvisor(sc *SyncContext, name string) {
	name = strings.TrimSpace(name)
	if err := s.prefs.SetAdvisor(name); err != nil {
		s.warn("save advisor", "", err)
	}
	if sc.Active() {
		sc.Venture.Advisor = name
		s.Save(sc)
	}
}

func (s *VentureStore) Advisor() string {
	name, err := s.prefs.Advisor()
	if err != nil {
		s.warn("load advisor", "", err)
		return ""
	}
	return name
}

// Restart starts a new assessment round. The next submission is a create.
func (s *VentureStore) Restart(sc *SyncContext) error {
	v, err := activeVenture(sc)
	if err != nil {
		return err
	}
	v.Restart()
	s.Save(sc)
	return nil
}

// Export encodes a stored venture. An empty id exports the active one.
func (s *VentureStore) Export(sc *SyncContext, id string, format ExportFormat) ([]byte, error) {
	var v *domain.Venture
	switch {
	case id == "" && sc.Active():
		v = sc.Venture
	case id == "":
		return nil, &ValidationError{Field: "venture", Message: "no active venture"}
	default:
		found, err := s.ventures.FindByID(id)
		if err != nil {
			return nil, fmt.Errorf("failed to export venture %s: %w", id, err)
		}
		v = found
	}

	if format == FormatYAML {
		return yaml.Marshal(v)
	}
	return json.MarshalIndent(v, "", "  ")
}

// Import stores a copy of an exported venture under fresh local and remote
// ids. The copy is never bound to a remote row.
func (s *VentureStore) Import(data []byte, format ExportFormat) (*domain.Venture, error) {
	var v domain.Venture
	var err error
	if format == FormatYAML {
		err = yaml.Unmarshal(data, &v)
	} else {
		err = json.Unmarshal(data, &v)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode venture: %w", err)
	}
	if strings.TrimSpace(v.Name) == "" {
		return nil, &ValidationError{Field: "ventureName", Message: "is required"}
	}

	now := s.now()
	v.ID = newVentureID()
	v.RemoteVentureID = uuid.NewString()
	v.Name = strings.TrimSpace(v.Name)
	v.CreatedAt = now
	v.UpdatedAt = now
	v.LastSubmittedAt = nil
	v.LastSubmittedHash = ""
	v.Unbind()
	v.Normalize()

	for c, level := range v.Scores {
		if !c.Enabled(true) || level <= 0 {
			delete(v.Scores, c)
			continue
		}
		v.Scores[c] = domain.ClampLevel(level)
	}

	s.put(&v, "import")
	return &v, nil
}

func (s *VentureStore) AppendHistory(entry *domain.HistoryEntry) {
	if err := s.history.Append(entry); err != nil {
		s.warn("append history", entry.VentureID, err)
	}
}

func (s *VentureStore) History(id string) []*domain.HistoryEntry {
	entries, err := s.history.List(id)
	if err != nil {
		s.warn("list history", id, err)
		return nil
	}
	return entries
}

func (s *VentureStore) put(v *domain.Venture, op string) {
	if err := s.ventures.Put(v); err != nil {
		s.warn(op, v.ID, err)
	}
}

func (s *VentureStore) setActive(id string) {
	if err := s.prefs.SetActiveID(id); err != nil {
		s.warn("set active", id, err)
	}
}

func (s *VentureStore) warn(op, id string, err error) {
	w := &PersistenceWarning{Op: op, VentureID: id, Err: err}
	s.logger.Warn("persistence warning",
		zap.String("op", w.Op),
		zap.String("venture_id", w.VentureID),
		zap.Error(w.Err),
	)
}

func activeVenture(sc *SyncContext) (*domain.Venture, error) {
	if !sc.Active() {
		return nil, &ValidationError{Field: "venture", Message: "no active venture"}
	}
	return sc.Venture, nil
}
