package model

import "time"

// Tier selects a verification latency class
type Tier string

const (
	TierFast   Tier = "FAST"
	TierMedium Tier = "MEDIUM"
	TierSlow   Tier = "SLOW"
)

// Severity of a verification issue
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityWarning  Severity = "WARNING"
	SeverityInfo     Severity = "INFO"
)

// TextLocation is a byte range into the generated text
type TextLocation struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// VerificationIssue is a single finding of a verification check
type VerificationIssue struct {
	Check        string        `json:"check"`
	Severity     Severity      `json:"severity"`
	Message      string        `json:"message"`
	Location     *TextLocation `json:"location,omitempty"`
	SuggestedFix *string       `json:"suggested_fix,omitempty"`
	AutoFixable  bool          `json:"auto_fixable"`
}

// VerificationResult is the outcome of one tier run.
// Passed is true iff no issue is CRITICAL; Complete is false when a
// timeout or cancellation cut the tier short.
type VerificationResult struct {
	Tier     Tier                `json:"tier"`
	Passed   bool                `json:"passed"`
	Issues   []VerificationIssue `json:"issues"`
	Duration time.Duration       `json:"duration"`
	Complete bool                `json:"complete"`
}

// NewVerificationResult builds a result and derives Passed from the issues
func NewVerificationResult(tier Tier, issues []VerificationIssue, duration time.Duration, complete bool) *VerificationResult {
	if issues == nil {
		issues = []VerificationIssue{}
	}
	return &VerificationResult{
		Tier:     tier,
		Passed:   !HasCritical(issues),
		Issues:   issues,
		Duration: duration,
		Complete: complete,
	}
}

// HasCritical reports whether any issue is CRITICAL
func HasCritical(issues []VerificationIssue) bool {
	for _, issue := range issues {
		if issue.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// IssuesByCheck returns the issues produced by the named check
func (r *VerificationResult) IssuesByCheck(check string) []VerificationIssue {
	var issues []VerificationIssue
	for _, issue := range r.Issues {
		if issue.Check == check {
			issues = append(issues, issue)
		}
	}
	return issues
}

// EventRecord is one occurrence of a typed event at an ordered position
type EventRecord struct {
	Type     string `json:"type" yaml:"type"`
	Position int    `json:"position" yaml:"position"`
	Label    string `json:"label,omitempty" yaml:"label,omitempty"`
}

// PositionMarker is an ordered position (chapter, timeline step, ...).
// Transition marks an explicit jump such as a flashback.
type PositionMarker struct {
	Label      string `json:"label" yaml:"label"`
	Value      int    `json:"value" yaml:"value"`
	Transition bool   `json:"transition,omitempty" yaml:"transition,omitempty"`
}

// VerificationScope is everything a verification run checks the text against.
type VerificationScope struct {
	Entities      []*Entity       `json:"entities,omitempty" yaml:"-"`
	Relationships []*Relationship `json:"relationships,omitempty" yaml:"-"`
	MustReference []string        `json:"must_reference,omitempty" yaml:"must_reference,omitempty"`

	// MEDIUM tier records
	Events          []EventRecord    `json:"events,omitempty" yaml:"events,omitempty"`
	CurrentPosition *int             `json:"current_position,omitempty" yaml:"current_position,omitempty"`
	GapThresholds   map[string]int   `json:"gap_thresholds,omitempty" yaml:"gap_thresholds,omitempty"`
	Positions       []PositionMarker `json:"positions,omitempty" yaml:"positions,omitempty"`

	// SLOW tier pass/fail cutoff on the analyzer score, nil uses the service default
	SlowThreshold *float64 `json:"slow_threshold,omitempty" yaml:"slow_threshold,omitempty"`
}

// EntityByID returns the scope entity with the given id
func (s *VerificationScope) EntityByID() map[string]*Entity {
	byID := make(map[string]*Entity, len(s.Entities))
	for _, e := range s.Entities {
		if e != nil {
			byID[e.ID.String()] = e
		}
	}
	return byID
}

// SemanticFinding is one structured finding of the external semantic analyzer
type SemanticFinding struct {
	Check       string   `json:"check"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Excerpt     string   `json:"excerpt,omitempty"`
	Suggestion  string   `json:"suggestion,omitempty"`
	AutoFixable bool     `json:"auto_fixable,omitempty"`
}

// SemanticAnalysis is the structured output of the external semantic analyzer
type SemanticAnalysis struct {
	Score    float64           `json:"score"`
	Findings []SemanticFinding `json:"findings"`
}
