package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

type Action string

const (
	ActionCreate             Action = "create"
	ActionUpdate             Action = "update"
	ActionList               Action = "list"
	ActionListQualifications Action = "list_qualifications"
)

func (a Action) Mutating() bool {
	return a == ActionCreate || a == ActionUpdate
}

// Request is the single envelope sent to the proxy endpoint. Write actions
// carry an Assessment; list actions carry a Limit.
type Request struct {
	Action Action `json:"action" validate:"required,oneof=create update list list_qualifications"`
	RowID  string `json:"rowId,omitempty" validate:"required_if=Action update"`
	Limit  int    `json:"limit,omitempty" validate:"omitempty,min=1,max=1000"`
	*Assessment
}

// Assessment mirrors the column layout of the remote assessment sheet.
type Assessment struct {
	VentureID           string `json:"ventureId" validate:"required"`
	VentureName         string `json:"ventureName" validate:"required,max=255"`
	AdvisorName         string `json:"advisorName" validate:"required,max=255"`
	Portfolio           string `json:"portfolio" validate:"max=100"`
	AssessmentNumber    int    `json:"assessmentNumber" validate:"min=1"`
	AssessmentDate      string `json:"assessmentDate" validate:"required"`
	IsHealthTrack       bool   `json:"isHealthTrack"`
	IP                  int    `json:"RL_IP" validate:"min=0,max=9"`
	Technology          int    `json:"RL_Technology" validate:"min=0,max=9"`
	Market              int    `json:"RL_Market" validate:"min=0,max=9"`
	Product             int    `json:"RL_Product" validate:"min=0,max=9"`
	Team                int    `json:"RL_Team" validate:"min=0,max=9"`
	GoToMarket          int    `json:"RL_GTM" validate:"min=0,max=9"`
	Business            int    `json:"RL_Business" validate:"min=0,max=9"`
	Funding             int    `json:"RL_Funding" validate:"min=0,max=9"`
	Regulatory          *int   `json:"RL_Regulatory" validate:"omitempty,min=0,max=9"`
	SubmissionTimestamp string `json:"submissionTimestamp,omitempty"`
}

// SetScore writes a level into its column. Regulatory is left null unless
// the health track is enabled.
func (a *Assessment) SetScore(c Category, level int) {
	level = ClampLevel(level)
	switch c {
	case CategoryIP:
		a.IP = level
	case CategoryTechnology:
		a.Technology = level
	case CategoryMarket:
		a.Market = level
	case CategoryProduct:
		a.Product = level
	case CategoryTeam:
		a.Team = level
	case CategoryGoToMarket:
		a.GoToMarket = level
	case CategoryBusiness:
		a.Business = level
	case CategoryFunding:
		a.Funding = level
	case CategoryRegulatory:
		if a.IsHealthTrack {
			a.Regulatory = &level
		}
	}
}

func (a *Assessment) Score(c Category) (int, bool) {
	switch c {
	case CategoryIP:
		return a.IP, true
	case CategoryTechnology:
		return a.Technology, true
	case CategoryMarket:
		return a.Market, true
	case CategoryProduct:
		return a.Product, true
	case CategoryTeam:
		return a.Team, true
	case CategoryGoToMarket:
		return a.GoToMarket, true
	case CategoryBusiness:
		return a.Business, true
	case CategoryFunding:
		return a.Funding, true
	case CategoryRegulatory:
		if a.Regulatory == nil {
			return 0, false
		}
		return *a.Regulatory, true
	}
	return 0, false
}

type Response struct {
	Success bool        `json:"success"`
	RowID   LooseString `json:"rowId,omitempty"`
	Error   string      `json:"error,omitempty"`
	Rows    []Row       `json:"rows,omitempty"`
}

// Row is one line of a remote listing. Sheet-backed stores are loose about
// cell types, so numeric columns tolerate strings and nulls.
type Row struct {
	RowID               LooseString `json:"rowId"`
	VentureID           string      `json:"ventureId"`
	VentureName         string      `json:"ventureName"`
	AdvisorName         string      `json:"advisorName"`
	Portfolio           string      `json:"portfolio"`
	AssessmentNumber    LooseInt    `json:"assessmentNumber"`
	AssessmentDate      string      `json:"assessmentDate"`
	SubmissionTimestamp string      `json:"submissionTimestamp,omitempty"`
	IsHealthTrack       LooseBool   `json:"isHealthTrack"`
	IP                  LooseInt    `json:"RL_IP"`
	Technology          LooseInt    `json:"RL_Technology"`
	Market              LooseInt    `json:"RL_Market"`
	Product             LooseInt    `json:"RL_Product"`
	Team                LooseInt    `json:"RL_Team"`
	GoToMarket          LooseInt    `json:"RL_GTM"`
	Business            LooseInt    `json:"RL_Business"`
	Funding             LooseInt    `json:"RL_Funding"`
	Regulatory          LooseInt    `json:"RL_Regulatory"`
	Source              string      `json:"source,omitempty"`
}

func RowFromAssessment(rowID string, a *Assessment) Row {
	row := Row{
		RowID:               LooseString(rowID),
		VentureID:           a.VentureID,
		VentureName:         a.VentureName,
		AdvisorName:         a.AdvisorName,
		Portfolio:           a.Portfolio,
		AssessmentNumber:    LooseInt(a.AssessmentNumber),
		AssessmentDate:      a.AssessmentDate,
		SubmissionTimestamp: a.SubmissionTimestamp,
		IsHealthTrack:       LooseBool(a.IsHealthTrack),
		IP:                  LooseInt(a.IP),
		Technology:          LooseInt(a.Technology),
		Market:              LooseInt(a.Market),
		Product:             LooseInt(a.Product),
		Team:                LooseInt(a.Team),
		GoToMarket:          LooseInt(a.GoToMarket),
		Business:            LooseInt(a.Business),
		Funding:             LooseInt(a.Funding),
	}
	if a.Regulatory != nil {
		row.Regulatory = LooseInt(*a.Regulatory)
	}
	return row
}

func (r Row) Scores() Scores {
	scores := Scores{
		CategoryIP:         ClampLevel(int(r.IP)),
		CategoryTechnology: ClampLevel(int(r.Technology)),
		CategoryMarket:     ClampLevel(int(r.Market)),
		CategoryProduct:    ClampLevel(int(r.Product)),
		CategoryTeam:       ClampLevel(int(r.Team)),
		CategoryGoToMarket: ClampLevel(int(r.GoToMarket)),
		CategoryBusiness:   ClampLevel(int(r.Business)),
		CategoryFunding:    ClampLevel(int(r.Funding)),
	}
	if r.IsHealthTrack {
		scores[CategoryRegulatory] = ClampLevel(int(r.Regulatory))
	}
	return scores
}

// Date prefers the assessment date and falls back to the submission stamp.
func (r Row) Date() string {
	if r.AssessmentDate != "" {
		return r.AssessmentDate
	}
	return r.SubmissionTimestamp
}

// LooseInt decodes numbers, numeric strings and null; anything unparsable
// becomes zero.
type LooseInt int

func (n *LooseInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			*n = 0
			return nil
		}
	}
	s = strings.TrimSpace(s)
	if v, err := strconv.Atoi(s); err == nil {
		*n = LooseInt(v)
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*n = LooseInt(int(f))
		return nil
	}
	*n = 0
	return nil
}

type LooseBool bool

func (b *LooseBool) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch string(data) {
	case "true", `"true"`, `"TRUE"`, `"True"`:
		*b = true
	default:
		*b = false
	}
	return nil
}

// LooseString accepts either a JSON string or a number, as row ids handed
// out by sheet backends are frequently numeric.
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = LooseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = LooseString(num.String())
	return nil
}

func (s LooseString) String() string {
	return string(s)
}
