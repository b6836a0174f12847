package verification

import (
	"context"
	"fmt"
	"strings"

	"github.com/siherrmann/loregraph/model"
)

// CheckSemanticScore is the check name of the SLOW tier score cutoff
const CheckSemanticScore = "semantic_score"

// SemanticAnalyzer is the external collaborator behind the SLOW tier.
// Implementations must return promptly once ctx is done.
type SemanticAnalyzer interface {
	Analyze(ctx context.Context, text string, scope *model.VerificationScope) (*model.SemanticAnalysis, error)
}

// SemanticAnalyzerFunc adapts a function to SemanticAnalyzer
type SemanticAnalyzerFunc func(ctx context.Context, text string, scope *model.VerificationScope) (*model.SemanticAnalysis, error)

// Analyze calls f
func (f SemanticAnalyzerFunc) Analyze(ctx context.Context, text string, scope *model.VerificationScope) (*model.SemanticAnalysis, error) {
	return f(ctx, text, scope)
}

// analysisIssues converts analyzer findings into issues and applies the
// score cutoff. A score below threshold is CRITICAL.
func analysisIssues(text string, analysis *model.SemanticAnalysis, threshold float64) []model.VerificationIssue {
	var issues []model.VerificationIssue
	for _, finding := range analysis.Findings {
		check := strings.TrimSpace(finding.Check)
		if check == "" {
			check = "semantic"
		}
		issue := model.VerificationIssue{
			Check:       check,
			Severity:    normalizeSeverity(finding.Severity),
			Message:     finding.Message,
			AutoFixable: finding.AutoFixable,
		}
		if finding.Excerpt != "" {
			issue.Location = locate(text, finding.Excerpt)
		}
		if finding.Suggestion != "" {
			issue.SuggestedFix = stringPtr(finding.Suggestion)
		}
		issues = append(issues, issue)
	}

	if analysis.Score < threshold {
		issues = append(issues, model.VerificationIssue{
			Check:    CheckSemanticScore,
			Severity: model.SeverityCritical,
			Message:  fmt.Sprintf("semantic score %.2f is below the threshold %.2f", analysis.Score, threshold),
		})
	}
	return issues
}

func normalizeSeverity(severity model.Severity) model.Severity {
	switch model.Severity(strings.ToUpper(strings.TrimSpace(string(severity)))) {
	case model.SeverityCritical:
		return model.SeverityCritical
	case model.SeverityWarning:
		return model.SeverityWarning
	default:
		return model.SeverityInfo
	}
}
