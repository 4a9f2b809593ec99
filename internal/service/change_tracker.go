package service

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"readiness-sync/internal/domain"
)

// ChangeTracker answers whether a venture has drifted from what was last
// successfully sent. It does no I/O.
type ChangeTracker struct {
	now func() time.Time
}

func NewChangeTracker(now func() time.Time) *ChangeTracker {
	if now == nil {
		now = time.Now
	}
	return &ChangeTracker{now: now}
}

// Fingerprint hashes name, health track and the nonzero scores of enabled
// categories. Timestamps, advisor and portfolio are not part of it.
func Fingerprint(v *domain.Venture) string {
	if v == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(v.Name))
	b.WriteByte('\n')
	b.WriteString(strconv.FormatBool(v.IsHealthTrack))
	b.WriteByte('\n')

	keys := make([]string, 0, len(v.Scores))
	for c, level := range v.Scores {
		if level == 0 || !c.Enabled(v.IsHealthTrack) {
			continue
		}
		keys = append(keys, string(c)+"="+strconv.Itoa(domain.ClampLevel(level)))
	}
	sort.Strings(keys)
	b.WriteString(strings.Join(keys, ";"))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func (t *ChangeTracker) Fingerprint(v *domain.Venture) string {
	return Fingerprint(v)
}

func (t *ChangeTracker) Status(v *domain.Venture) domain.Status {
	if v == nil || v.LastSubmittedAt == nil {
		return domain.Status{}
	}
	at := *v.LastSubmittedAt
	return domain.Status{
		Submitted:       true,
		HasChanges:      Fingerprint(v) != v.LastSubmittedHash,
		LastSubmittedAt: &at,
	}
}

func (t *ChangeTracker) RecordSuccess(v *domain.Venture) {
	if v == nil {
		return
	}
	now := t.now()
	v.LastSubmittedAt = &now
	v.LastSubmittedHash = Fingerprint(v)
}
