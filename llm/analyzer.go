package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/siherrmann/loregraph/model"
)

const analysisPrompt = `You check generated story text for consistency with established facts.

Known entities:
%s
Known relationships:
%s
Text:
"""
%s
"""

Respond with a single JSON object:
{"score": <0.0 to 1.0, 1.0 means fully consistent>,
 "findings": [{"check": "<short name>", "severity": "CRITICAL|WARNING|INFO",
   "message": "<what is wrong>", "excerpt": "<exact quote from the text>",
   "suggestion": "<how to fix>", "auto_fixable": <true|false>}]}`

// SemanticAnalyzer asks a model for a structured consistency analysis.
type SemanticAnalyzer struct {
	client Client
	prompt string
}

func NewSemanticAnalyzer(client Client) *SemanticAnalyzer {
	return &SemanticAnalyzer{client: client, prompt: analysisPrompt}
}

func (a *SemanticAnalyzer) Analyze(ctx context.Context, text string, scope *model.VerificationScope) (*model.SemanticAnalysis, error) {
	if scope == nil {
		scope = &model.VerificationScope{}
	}

	prompt := fmt.Sprintf(a.prompt, describeEntities(scope), describeRelationships(scope), text)
	response, err := a.client.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("error generating analysis: %w", err)
	}

	analysis, err := ParseJSON[model.SemanticAnalysis](response)
	if err != nil {
		return nil, fmt.Errorf("error parsing analysis: %w", err)
	}

	analysis.Score = min(max(analysis.Score, 0), 1)
	for i := range analysis.Findings {
		analysis.Findings[i].Severity = model.Severity(strings.ToUpper(string(analysis.Findings[i].Severity)))
	}
	return &analysis, nil
}

func describeEntities(scope *model.VerificationScope) string {
	var b strings.Builder
	for _, e := range scope.Entities {
		if e == nil {
			continue
		}
		fmt.Fprintf(&b, "- %s (%s)", e.Name, e.Type)
		if e.Description != "" {
			fmt.Fprintf(&b, ": %s", e.Description)
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "- none\n"
	}
	return b.String()
}

func describeRelationships(scope *model.VerificationScope) string {
	names := map[string]string{}
	for _, e := range scope.Entities {
		if e != nil {
			names[e.ID.String()] = e.Name
		}
	}
	name := func(id string) string {
		if n, ok := names[id]; ok {
			return n
		}
		return id
	}

	var lines []string
	for _, r := range scope.Relationships {
		if r == nil || !r.Active {
			continue
		}
		line := fmt.Sprintf("- %s %s %s", name(r.SourceID.String()), r.Type, name(r.TargetID.String()))
		if r.Status != "" {
			line += fmt.Sprintf(" [%s]", r.Status)
		}
		if r.Description != "" {
			line += ": " + r.Description
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return "- none\n"
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n"
}
