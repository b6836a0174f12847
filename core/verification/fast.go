package verification

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/siherrmann/loregraph/model"
)

const (
	CheckEntityStatusConflict = "entity_status_conflict"
	CheckKnownContradiction   = "known_contradiction"
	CheckMissingReference     = "missing_required_reference"
)

// FastChecks returns the direct-lookup checks in evaluation order
func FastChecks() []Check {
	return []Check{
		{Name: CheckEntityStatusConflict, Run: checkEntityStatus},
		{Name: CheckKnownContradiction, Run: checkContradictions},
		{Name: CheckMissingReference, Run: checkRequiredReferences},
	}
}

// retiredEntities maps retired entity names to their status. Only active
// STATUS relationships count.
func retiredEntities(scope *model.VerificationScope) map[string]string {
	byID := scope.EntityByID()
	retired := make(map[string]string)
	for _, rel := range scope.Relationships {
		if rel == nil || rel.Type != model.RelationshipStatus || !rel.Active || !model.IsRetirementStatus(rel.Status) {
			continue
		}
		if e, ok := byID[rel.SourceID.String()]; ok && e.Name != "" {
			retired[e.Name] = strings.ToLower(strings.TrimSpace(rel.Status))
		}
	}
	return retired
}

func checkEntityStatus(ctx context.Context, text string, scope *model.VerificationScope) ([]model.VerificationIssue, error) {
	retired := retiredEntities(scope)
	names := make([]string, 0, len(retired))
	for name := range retired {
		names = append(names, name)
	}
	sort.Strings(names)

	var issues []model.VerificationIssue
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return issues, nil
		}
		location := locate(text, name)
		if location == nil {
			continue
		}
		status := retired[name]
		issues = append(issues, model.VerificationIssue{
			Check:        CheckEntityStatusConflict,
			Severity:     model.SeverityCritical,
			Message:      fmt.Sprintf("%s appears in the text but is %s", name, status),
			Location:     location,
			SuggestedFix: stringPtr(fmt.Sprintf("Remove %s from the scene or frame the mention as memory or flashback", name)),
		})
	}
	return issues, nil
}

func checkContradictions(ctx context.Context, text string, scope *model.VerificationScope) ([]model.VerificationIssue, error) {
	byID := scope.EntityByID()

	var issues []model.VerificationIssue
	for _, rel := range scope.Relationships {
		if err := ctx.Err(); err != nil {
			return issues, nil
		}
		if rel == nil || rel.Type != model.RelationshipContradicts || !rel.Active {
			continue
		}
		a, okA := byID[rel.SourceID.String()]
		b, okB := byID[rel.TargetID.String()]
		if !okA || !okB || a.Name == "" || b.Name == "" {
			continue
		}
		if start, _ := indexFold(text, a.Name); start < 0 {
			continue
		}
		if start, _ := indexFold(text, b.Name); start < 0 {
			continue
		}

		message := fmt.Sprintf("%s and %s are known to contradict each other", a.Name, b.Name)
		if rel.Description != "" {
			message += ": " + rel.Description
		}
		issues = append(issues, model.VerificationIssue{
			Check:    CheckKnownContradiction,
			Severity: model.SeverityWarning,
			Message:  message,
			Location: locate(text, b.Name),
		})
	}
	return issues, nil
}

func checkRequiredReferences(ctx context.Context, text string, scope *model.VerificationScope) ([]model.VerificationIssue, error) {
	var issues []model.VerificationIssue
	for _, required := range scope.MustReference {
		required = strings.TrimSpace(required)
		if required == "" {
			continue
		}
		if start, _ := indexFold(text, required); start >= 0 {
			continue
		}
		issues = append(issues, model.VerificationIssue{
			Check:        CheckMissingReference,
			Severity:     model.SeverityWarning,
			Message:      fmt.Sprintf("required reference %q is missing", required),
			SuggestedFix: stringPtr(fmt.Sprintf("Mention %s", required)),
		})
	}
	return issues, nil
}
