package verification

import (
	"context"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/siherrmann/loregraph/model"
)

// CheckUnavailable is the check name of issues reporting a failed check
const CheckUnavailable = "check_unavailable"

// Check is one named verification rule of a tier
type Check struct {
	Name string
	Run  func(ctx context.Context, text string, scope *model.VerificationScope) ([]model.VerificationIssue, error)
}

// runCheck executes one check, turning an error or panic into a single
// check_unavailable issue
func runCheck(ctx context.Context, check Check, text string, scope *model.VerificationScope) (issues []model.VerificationIssue) {
	defer func() {
		if p := recover(); p != nil {
			issues = []model.VerificationIssue{unavailable(check.Name, fmt.Errorf("panic: %v", p))}
		}
	}()

	issues, err := check.Run(ctx, text, scope)
	if err != nil {
		return []model.VerificationIssue{unavailable(check.Name, err)}
	}
	return issues
}

func unavailable(check string, err error) model.VerificationIssue {
	return model.VerificationIssue{
		Check:    CheckUnavailable,
		Severity: model.SeverityInfo,
		Message:  fmt.Sprintf("%s could not run: %v", check, err),
	}
}

// indexFold is a case-insensitive strings.Index over rune windows, so case
// pairs of different UTF-8 length (ß and ẞ, K and the Kelvin sign) match.
// It returns the byte range of the first match in text, or -1, -1.
func indexFold(text, substr string) (int, int) {
	if substr == "" {
		return -1, -1
	}
	for i := range text {
		if n, ok := hasPrefixFold(text[i:], substr); ok {
			return i, i + n
		}
	}
	return -1, -1
}

// hasPrefixFold reports whether text starts with prefix under simple case
// folding and how many bytes of text the prefix covers
func hasPrefixFold(text, prefix string) (int, bool) {
	n := 0
	for _, p := range prefix {
		if n >= len(text) {
			return 0, false
		}
		r, size := utf8.DecodeRuneInString(text[n:])
		if !equalFoldRune(r, p) {
			return 0, false
		}
		n += size
	}
	return n, true
}

func equalFoldRune(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}

func locate(text, substr string) *model.TextLocation {
	start, end := indexFold(text, substr)
	if start < 0 {
		return nil
	}
	return &model.TextLocation{Start: start, End: end}
}

func stringPtr(s string) *string {
	return &s
}
