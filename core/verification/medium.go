package verification

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/siherrmann/loregraph/core/pipeline"
	"github.com/siherrmann/loregraph/model"
)

const (
	CheckEventGap           = "event_gap_exceeded"
	CheckSequenceRegression = "sequence_regression"
	CheckUnknownMention     = "unknown_mention"
)

// mentionLabels are the NER labels compared against known entities
var mentionLabels = map[string]bool{"PER": true, "LOC": true, "ORG": true}

// MediumChecks returns the aggregate checks over ordered records.
// extract may be nil, unknown mentions are then not checked.
func MediumChecks(extract pipeline.MentionExtractFunc) []Check {
	checks := []Check{
		{Name: CheckEventGap, Run: checkEventGaps},
		{Name: CheckSequenceRegression, Run: checkSequence},
	}
	if extract != nil {
		checks = append(checks, Check{Name: CheckUnknownMention, Run: unknownMentions(extract)})
	}
	return checks
}

// currentPosition is the explicit current position, else the last position marker
func currentPosition(scope *model.VerificationScope) (int, bool) {
	if scope.CurrentPosition != nil {
		return *scope.CurrentPosition, true
	}
	if n := len(scope.Positions); n > 0 {
		return scope.Positions[n-1].Value, true
	}
	return 0, false
}

// checkEventGaps warns for every thresholded event type whose last
// occurrence lies more than its threshold behind the current position.
// Event types that never occurred are not reported.
func checkEventGaps(ctx context.Context, text string, scope *model.VerificationScope) ([]model.VerificationIssue, error) {
	if len(scope.GapThresholds) == 0 {
		return nil, nil
	}
	current, ok := currentPosition(scope)
	if !ok {
		return nil, nil
	}

	last := make(map[string]int)
	for _, event := range scope.Events {
		if event.Position > current {
			continue
		}
		if p, seen := last[event.Type]; !seen || event.Position > p {
			last[event.Type] = event.Position
		}
	}

	types := make([]string, 0, len(scope.GapThresholds))
	for eventType := range scope.GapThresholds {
		types = append(types, eventType)
	}
	sort.Strings(types)

	var issues []model.VerificationIssue
	for _, eventType := range types {
		if ctx.Err() != nil {
			return issues, nil
		}
		threshold := scope.GapThresholds[eventType]
		position, seen := last[eventType]
		if !seen {
			continue
		}
		gap := current - position
		if gap <= threshold {
			continue
		}
		issues = append(issues, model.VerificationIssue{
			Check:        CheckEventGap,
			Severity:     model.SeverityWarning,
			Message:      fmt.Sprintf("%s last occurred %d positions ago (threshold %d)", eventType, gap, threshold),
			SuggestedFix: stringPtr(fmt.Sprintf("Bring back a %s soon", eventType)),
		})
	}
	return issues, nil
}

// checkSequence reports position markers moving backward without a transition
func checkSequence(ctx context.Context, text string, scope *model.VerificationScope) ([]model.VerificationIssue, error) {
	var issues []model.VerificationIssue
	for i := 1; i < len(scope.Positions); i++ {
		previous, marker := scope.Positions[i-1], scope.Positions[i]
		if marker.Value >= previous.Value || marker.Transition {
			continue
		}
		issues = append(issues, model.VerificationIssue{
			Check:    CheckSequenceRegression,
			Severity: model.SeverityInfo,
			Message: fmt.Sprintf("position moves back from %s (%d) to %s (%d) without a transition",
				label(previous), previous.Value, label(marker), marker.Value),
			SuggestedFix: stringPtr("Mark the jump as a flashback or reorder the passage"),
		})
	}
	return issues, nil
}

func label(marker model.PositionMarker) string {
	if marker.Label != "" {
		return marker.Label
	}
	return "position"
}

// unknownMentions reports named mentions that match no scope entity
func unknownMentions(extract pipeline.MentionExtractFunc) func(ctx context.Context, text string, scope *model.VerificationScope) ([]model.VerificationIssue, error) {
	return func(ctx context.Context, text string, scope *model.VerificationScope) ([]model.VerificationIssue, error) {
		mentions, err := extract(text)
		if err != nil {
			return nil, err
		}

		known := make([]string, 0, len(scope.Entities))
		for _, e := range scope.Entities {
			if e != nil && e.Name != "" {
				known = append(known, strings.ToLower(e.Name))
			}
		}

		reported := make(map[string]bool)
		var issues []model.VerificationIssue
		for _, mention := range mentions {
			name := strings.TrimSpace(mention.Text)
			key := strings.ToLower(name)
			if name == "" || !mentionLabels[mention.Label] || reported[key] || isKnown(key, known) {
				continue
			}
			reported[key] = true

			issue := model.VerificationIssue{
				Check:    CheckUnknownMention,
				Severity: model.SeverityInfo,
				Message:  fmt.Sprintf("%s (%s) is not a known entity", name, mention.Label),
			}
			if mention.End > mention.Start && mention.End <= len(text) {
				issue.Location = &model.TextLocation{Start: mention.Start, End: mention.End}
			}
			issues = append(issues, issue)
		}
		return issues, nil
	}
}

// isKnown matches a mention against known names in either direction, so
// "Mara" matches "Mara Quill" and the reverse
func isKnown(mention string, known []string) bool {
	for _, name := range known {
		if strings.Contains(name, mention) || strings.Contains(mention, name) {
			return true
		}
	}
	return false
}
