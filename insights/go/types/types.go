// Package types holds the core domain types shared by every part of the
// analytics engine: surveys, question instances, raw responses and answers.
package types

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"go.pollpulse.org/infra/go/util"
)

// SurveyID identifies a single survey.
type SurveyID string

// SurveyItemID identifies a single question instance within a survey.
type SurveyItemID string

// ResponseID identifies a single raw response document.
type ResponseID string

// CompanyID identifies the tenant a survey belongs to.
type CompanyID string

// TeamID identifies the team within a tenant a survey belongs to.
type TeamID string

// QuestionType is the type of a question instance, which determines how its
// answers are normalized and which detections apply to it.
type QuestionType string

const (
	CountryList    QuestionType = "countryList"
	YesNo          QuestionType = "yesNo"
	Dropdown       QuestionType = "dropdown"
	Checkboxes     QuestionType = "checkboxes"
	MultipleChoice QuestionType = "multipleChoice"
	Slider         QuestionType = "slider"
	LinearScale    QuestionType = "linearScale"
	NetPromoter    QuestionType = "netPromoterScore"
	Text           QuestionType = "text"
	Grid           QuestionType = "grid"
)

// AllQuestionTypes is the list of every known QuestionType.
var AllQuestionTypes = []QuestionType{
	CountryList,
	YesNo,
	Dropdown,
	Checkboxes,
	MultipleChoice,
	Slider,
	LinearScale,
	NetPromoter,
	Text,
	Grid,
}

// IsScalar returns true for question types whose answers are single numeric
// values, i.e. the types eligible for mean comparison and correlation.
func (q QuestionType) IsScalar() bool {
	return q == Slider || q == LinearScale || q == NetPromoter
}

// IsChoice returns true for question types whose answers are selections from
// a fixed option list.
func (q QuestionType) IsChoice() bool {
	return q == YesNo || q == Dropdown || q == Checkboxes || q == MultipleChoice
}

// ComparatorEligible returns true if period comparison applies to the type.
func (q QuestionType) ComparatorEligible() bool {
	return q.IsChoice() || q.IsScalar() || q == CountryList
}

// CorrelationEligible returns true if the type can participate in pairwise
// correlation.
func (q QuestionType) CorrelationEligible() bool {
	return q.IsScalar()
}

// Dimensions are the optional narrowing attributes a statistic record may be
// scoped to in addition to time bucket and question instance. The zero value
// is the base (unscoped) dimension set.
type Dimensions struct {
	RoundID    string   `json:"round,omitempty"`
	CampaignID string   `json:"campaign,omitempty"`
	TargetID   string   `json:"target,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// IsZero returns true for the base (unscoped) dimension set.
func (d Dimensions) IsZero() bool {
	return d.RoundID == "" && d.CampaignID == "" && d.TargetID == "" && len(d.Tags) == 0
}

// Key returns a stable string form of the dimensions, suitable for use as
// part of a record identity. Tags are sorted so two Dimensions with the same
// contents always produce the same Key.
func (d Dimensions) Key() string {
	tags := util.CopyStringSlice(d.Tags)
	sort.Strings(tags)
	return strings.Join([]string{d.RoundID, d.CampaignID, d.TargetID, strings.Join(tags, ",")}, "|")
}

// Matches returns true if a response carrying dimensions `other` falls within
// the scope of d. The base dimension set matches every response; a non-empty
// field must match exactly, and every tag of d must be present in other.
func (d Dimensions) Matches(other Dimensions) bool {
	if d.RoundID != "" && d.RoundID != other.RoundID {
		return false
	}
	if d.CampaignID != "" && d.CampaignID != other.CampaignID {
		return false
	}
	if d.TargetID != "" && d.TargetID != other.TargetID {
		return false
	}
	for _, tag := range d.Tags {
		if !util.In(tag, other.Tags) {
			return false
		}
	}
	return true
}

// OptionList is a list of selected option ids. Raw documents sometimes store
// a single selection as a bare string rather than a one element list, so it
// has custom JSON decoding that accepts both shapes.
type OptionList []string

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionList) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*o = OptionList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return err
	}
	*o = OptionList(many)
	return nil
}

// Answer is the raw answer a response holds for one question instance. Only
// the fields that make sense for the question's type are set; everything else
// is left at its zero value.
type Answer struct {
	// Options are the selected option ids for choice type questions.
	Options OptionList `json:"options,omitempty"`

	// Value is the numeric answer for scalar type questions.
	Value *float64 `json:"value,omitempty"`

	// Country is the ISO country code for country list questions.
	Country string `json:"country,omitempty"`

	// Custom is free text entered in place of, or in addition to, a
	// predefined option.
	Custom string `json:"customAnswer,omitempty"`

	// Grid maps a row id to the column ids selected in that row.
	Grid map[string]OptionList `json:"grid,omitempty"`
}

// Location is where a response was submitted from.
type Location struct {
	Country string `json:"country,omitempty"`
	City    string `json:"city,omitempty"`
}

// Response is a single raw survey response document.
type Response struct {
	ID         ResponseID `json:"id"`
	SurveyID   SurveyID   `json:"survey"`
	CreatedAt  time.Time  `json:"createdAt"`
	Completed  bool       `json:"completed"`
	Empty      bool       `json:"empty"`
	Preview    bool       `json:"preview"`
	Hidden     bool       `json:"hide"`
	Location   Location   `json:"location"`
	Dimensions Dimensions `json:"dimensions"`

	// Answers maps a question instance to the raw answer given.
	Answers map[SurveyItemID]Answer `json:"answers"`

	// Skipped lists the question instances the respondent explicitly
	// skipped.
	Skipped []SurveyItemID `json:"skipped,omitempty"`

	// SkippedByFlow lists the question instances that were never shown
	// because of survey flow logic.
	SkippedByFlow []SurveyItemID `json:"skippedByFlow,omitempty"`
}

// HasItem returns true if the response touches the given question instance in
// any way: answered, skipped, or skipped by flow.
func (r *Response) HasItem(itemID SurveyItemID) bool {
	if _, ok := r.Answers[itemID]; ok {
		return true
	}
	for _, id := range r.Skipped {
		if id == itemID {
			return true
		}
	}
	for _, id := range r.SkippedByFlow {
		if id == itemID {
			return true
		}
	}
	return false
}

// Survey is the metadata of one survey.
type Survey struct {
	ID        SurveyID  `json:"id"`
	CompanyID CompanyID `json:"company"`
	TeamID    TeamID    `json:"team"`
	Name      string    `json:"name"`
}

// SurveyItem is the metadata of one question instance.
type SurveyItem struct {
	ID       SurveyItemID `json:"id"`
	SurveyID SurveyID     `json:"survey"`
	Type     QuestionType `json:"type"`
}
