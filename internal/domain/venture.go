package domain

import (
	"strings"
	"time"
)

type Category string

const (
	CategoryIP         Category = "IP"
	CategoryTechnology Category = "Technology"
	CategoryMarket     Category = "Market"
	CategoryProduct    Category = "Product"
	CategoryTeam       Category = "Team"
	CategoryGoToMarket Category = "Go-to-Market"
	CategoryBusiness   Category = "Business"
	CategoryFunding    Category = "Funding"
	CategoryRegulatory Category = "Regulatory"
)

const (
	MinLevel            = 0
	MaxLevel            = 9
	DefaultAssessmentNo = 1
)

var baseCategories = []Category{
	CategoryIP,
	CategoryTechnology,
	CategoryMarket,
	CategoryProduct,
	CategoryTeam,
	CategoryGoToMarket,
	CategoryBusiness,
	CategoryFunding,
}

var categoryColumns = map[Category]string{
	CategoryIP:         "RL_IP",
	CategoryTechnology: "RL_Technology",
	CategoryMarket:     "RL_Market",
	CategoryProduct:    "RL_Product",
	CategoryTeam:       "RL_Team",
	CategoryGoToMarket: "RL_GTM",
	CategoryBusiness:   "RL_Business",
	CategoryFunding:    "RL_Funding",
	CategoryRegulatory: "RL_Regulatory",
}

// Categories returns the assessable categories in display order. Regulatory
// is only part of the health track.
func Categories(healthTrack bool) []Category {
	out := make([]Category, len(baseCategories), len(baseCategories)+1)
	copy(out, baseCategories)
	if healthTrack {
		out = append(out, CategoryRegulatory)
	}
	return out
}

// ParseCategory accepts a category name, its column name, or the short "GTM"
// alias, case-insensitively.
func ParseCategory(s string) (Category, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "gtm" {
		return CategoryGoToMarket, true
	}
	for c, col := range categoryColumns {
		if strings.ToLower(string(c)) == key || strings.ToLower(col) == key {
			return c, true
		}
	}
	return "", false
}

func (c Category) Column() string {
	return categoryColumns[c]
}

func (c Category) Enabled(healthTrack bool) bool {
	if c == CategoryRegulatory {
		return healthTrack
	}
	_, ok := categoryColumns[c]
	return ok
}

func ClampLevel(n int) int {
	if n < MinLevel {
		return MinLevel
	}
	if n > MaxLevel {
		return MaxLevel
	}
	return n
}

type Scores map[Category]int

// Assessed reports whether any category carries a level above zero.
func (s Scores) Assessed() bool {
	for _, level := range s {
		if level > 0 {
			return true
		}
	}
	return false
}

func (s Scores) Clone() Scores {
	out := make(Scores, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

type Venture struct {
	ID                 string     `json:"id" yaml:"id"`
	RemoteVentureID    string     `json:"remoteVentureId" yaml:"remoteVentureId"`
	Name               string     `json:"ventureName" yaml:"ventureName"`
	Scores             Scores     `json:"scores" yaml:"scores"`
	IsHealthTrack      bool       `json:"isHealthTrack" yaml:"isHealthTrack"`
	AssessedAt         *time.Time `json:"assessedAt,omitempty" yaml:"assessedAt,omitempty"`
	CreatedAt          time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt" yaml:"updatedAt"`
	Advisor            string     `json:"advisorName" yaml:"advisorName"`
	Portfolio          string     `json:"portfolio" yaml:"portfolio"`
	AssessmentNumber   int        `json:"assessmentNumber" yaml:"assessmentNumber"`
	LastSubmittedAt    *time.Time `json:"lastSubmittedAt,omitempty" yaml:"lastSubmittedAt,omitempty"`
	LastSubmittedHash  string     `json:"lastSubmittedHash,omitempty" yaml:"lastSubmittedHash,omitempty"`
	RemoteRowID        string     `json:"remoteRowId,omitempty" yaml:"remoteRowId,omitempty"`
	IsBoundToRemoteRow bool       `json:"isBoundToRemoteRow" yaml:"isBoundToRemoteRow"`
}

func NewVenture(id, remoteVentureID, name string, now time.Time) *Venture {
	return &Venture{
		ID:               id,
		RemoteVentureID:  remoteVentureID,
		Name:             name,
		Scores:           Scores{},
		CreatedAt:        now,
		UpdatedAt:        now,
		AssessmentNumber: DefaultAssessmentNo,
	}
}

// Bound reports whether the next submission must be an update.
func (v *Venture) Bound() bool {
	return v.IsBoundToRemoteRow && v.RemoteRowID != ""
}

func (v *Venture) Bind(rowID string) {
	if rowID == "" {
		return
	}
	v.RemoteRowID = rowID
	v.IsBoundToRemoteRow = true
}

func (v *Venture) Unbind() {
	v.RemoteRowID = ""
	v.IsBoundToRemoteRow = false
}

// Restart begins a new assessment round for the same venture. The next
// submission creates a fresh remote row.
func (v *Venture) Restart() {
	if v.AssessmentNumber < DefaultAssessmentNo {
		v.AssessmentNumber = DefaultAssessmentNo
	}
	v.AssessmentNumber++
	v.Scores = Scores{}
	v.AssessedAt = nil
	v.LastSubmittedAt = nil
	v.LastSubmittedHash = ""
	v.Unbind()
}

// Normalize repairs snapshots read from older or hand-edited records.
func (v *Venture) Normalize() {
	if v.Scores == nil {
		v.Scores = Scores{}
	}
	if v.AssessmentNumber < DefaultAssessmentNo {
		v.AssessmentNumber = DefaultAssessmentNo
	}
	v.IsBoundToRemoteRow = v.RemoteRowID != ""
}

func (v *Venture) Clone() *Venture {
	if v == nil {
		return nil
	}
	out := *v
	out.Scores = v.Scores.Clone()
	out.AssessedAt = cloneTime(v.AssessedAt)
	out.LastSubmittedAt = cloneTime(v.LastSubmittedAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
