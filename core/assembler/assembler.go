package assembler

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/siherrmann/loregraph/helper"
	"github.com/siherrmann/loregraph/model"
)

// TruncationMarker is appended to truncated section text. It is not
// counted against the budget.
const TruncationMarker = "[...truncated]"

// ErrCharacterCoreRender is returned when the character core cannot be rendered
var ErrCharacterCoreRender = errors.New("character core render failed")

// Assembler renders retrieval results into one bounded context
type Assembler struct {
	tokenizer Tokenizer
	renderers map[model.SectionCategory]RenderFunc
	logger    *slog.Logger
}

// NewAssembler creates an assembler with the default renderers.
// A nil tokenizer counts words.
func NewAssembler(tokenizer Tokenizer, logger *slog.Logger) *Assembler {
	if tokenizer == nil {
		tokenizer = WordTokenizer{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{
		tokenizer: tokenizer,
		renderers: DefaultRenderers(),
		logger:    logger,
	}
}

// SetRenderer replaces the renderer of a category. Not safe for use
// concurrently with Assemble.
func (a *Assembler) SetRenderer(category model.SectionCategory, fn RenderFunc) {
	a.renderers[category] = fn
}

// Tokenizer returns the tokenizer used for measuring
func (a *Assembler) Tokenizer() Tokenizer {
	return a.tokenizer
}

// Render renders every category in priority order and measures it. Empty
// categories are skipped. A failing renderer omits its category, except for
// the character core whose failure is returned as ErrCharacterCoreRender.
func (a *Assembler) Render(in RenderInput) ([]model.ContextSection, []model.ManifestEntry, error) {
	var sections []model.ContextSection
	var failed []model.ManifestEntry

	for _, category := range model.SectionPriority {
		render, ok := a.renderers[category]
		if !ok || render == nil {
			continue
		}

		text, err := safeRender(render, in)
		if err != nil {
			if category == model.SectionCharacterCore {
				return nil, nil, fmt.Errorf("%w: %w", ErrCharacterCoreRender, err)
			}
			a.logger.Warn("Omitting context section", slog.String("category", string(category)), slog.String("error", err.Error()))
			failed = append(failed, model.ManifestEntry{
				Category: category,
				Status:   model.SectionOmitted,
				Reason:   "render failed: " + err.Error(),
			})
			continue
		}
		if text == "" {
			continue
		}

		sections = append(sections, model.ContextSection{
			Category: category,
			Text:     text,
			Tokens:   a.tokenizer.CountTokens(text),
		})
	}

	return sections, failed, nil
}

func safeRender(render RenderFunc, in RenderInput) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("renderer panicked: %v", p)
		}
	}()
	text, err = render(in)
	return strings.TrimSpace(text), err
}

// Assemble renders and allocates the context for one query
func (a *Assembler) Assemble(in RenderInput, budget model.ContextBudget) (*model.AssembledContext, error) {
	if err := budget.Validate(); err != nil {
		return nil, helper.NewError("assemble", err)
	}

	sections, failed, err := a.Render(in)
	if err != nil {
		return nil, err
	}

	included, manifest := Allocate(sections, budget, a.tokenizer)
	if len(failed) > 0 {
		manifest.Entries = append(manifest.Entries, failed...)
		sortEntries(manifest.Entries)
	}
	for _, entry := range manifest.Entries {
		if entry.Status == model.SectionOmitted && !strings.HasPrefix(entry.Reason, "render failed") {
			a.logger.Warn("Omitting context section", slog.String("category", string(entry.Category)), slog.String("reason", entry.Reason))
		}
	}
	if in.Retrieval != nil {
		manifest.Sources = append([]model.SourceReport(nil), in.Retrieval.Reports...)
	}

	return &model.AssembledContext{
		Query:    in.Query,
		Text:     Join(included),
		Sections: included,
		Manifest: manifest,
	}, nil
}

// Allocate fits measured sections into the budget. Sections must be in
// priority order. The character core is always included in full unless it
// alone exceeds the hard maximum. Every other section is included if it fits
// the soft limit, truncated if it is the last section and budget remains,
// and omitted otherwise.
func Allocate(sections []model.ContextSection, budget model.ContextBudget, tokenizer Tokenizer) ([]model.ContextSection, model.Manifest) {
	manifest := model.Manifest{Profile: budget.Profile, Entries: []model.ManifestEntry{}}
	included := []model.ContextSection{}

	last := -1
	for i, section := range sections {
		if section.Category != model.SectionCharacterCore {
			last = i
		}
	}

	running := 0
	softLimit := budget.SoftLimit()
	for i, section := range sections {
		if section.Category == model.SectionCharacterCore {
			if section.Tokens > budget.HardMaxTokens {
				section = truncateSection(section, budget.HardMaxTokens, tokenizer)
			}
			running += section.Tokens
			included = append(included, section)
			manifest.Entries = append(manifest.Entries, entryOf(section))
			continue
		}

		switch {
		case running+section.Tokens <= softLimit:
			running += section.Tokens
			included = append(included, section)
			manifest.Entries = append(manifest.Entries, entryOf(section))
		case i == last && softLimit-running > 0:
			truncated := truncateSection(section, softLimit-running, tokenizer)
			if truncated.Tokens == 0 {
				manifest.Entries = append(manifest.Entries, omitted(section, "no whole word fits the remaining budget"))
				break
			}
			running += truncated.Tokens
			included = append(included, truncated)
			manifest.Entries = append(manifest.Entries, entryOf(truncated))
		default:
			manifest.Entries = append(manifest.Entries, omitted(section, fmt.Sprintf("needs %d tokens, %d of %d used", section.Tokens, running, softLimit)))
		}
	}

	manifest.TotalTokens = running
	for _, section := range included {
		if section.Truncated {
			manifest.TruncationMarkers = append(manifest.TruncationMarkers, string(section.Category))
		}
	}
	return included, manifest
}

func entryOf(section model.ContextSection) model.ManifestEntry {
	status := model.SectionIncluded
	if section.Truncated {
		status = model.SectionTruncated
	}
	return model.ManifestEntry{Category: section.Category, Status: status, Tokens: section.Tokens}
}

func omitted(section model.ContextSection, reason string) model.ManifestEntry {
	return model.ManifestEntry{Category: section.Category, Status: model.SectionOmitted, Tokens: section.Tokens, Reason: reason}
}

func sortEntries(entries []model.ManifestEntry) {
	rank := make(map[model.SectionCategory]int, len(model.SectionPriority))
	for i, category := range model.SectionPriority {
		rank[category] = i
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return rank[entries[i].Category] < rank[entries[j].Category]
	})
}

func truncateSection(section model.ContextSection, limit int, tokenizer Tokenizer) model.ContextSection {
	text, tokens := Truncate(section.Text, limit, tokenizer)
	section.Tokens = tokens
	section.Truncated = true
	if text == "" {
		section.Text = ""
		return section
	}
	section.Text = text + "\n" + TruncationMarker
	return section
}

// Truncate returns the longest prefix of text counting at most limit tokens,
// together with its count. It cuts at a word boundary first; when that leaves
// budget unused, as it does with sub-word tokenizers, the next word is cut
// rune by rune to fill the rest.
func Truncate(text string, limit int, tokenizer Tokenizer) (string, int) {
	if limit <= 0 {
		return "", 0
	}
	if n := tokenizer.CountTokens(text); n <= limit {
		return text, n
	}

	// ends[k] is the byte offset just after the k-th word
	var ends []int
	inWord := false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if inWord && space {
			ends = append(ends, i)
		}
		inWord = !space
	}
	if inWord {
		ends = append(ends, len(text))
	}

	// largest k whose prefix fits
	k := sort.Search(len(ends), func(k int) bool {
		return tokenizer.CountTokens(text[:ends[k]]) > limit
	})
	prefix, count := "", 0
	if k > 0 {
		prefix = text[:ends[k-1]]
		count = tokenizer.CountTokens(prefix)
	}

	if count < limit && k < len(ends) {
		var cuts []int
		for i := range text[len(prefix):ends[k]] {
			if i > 0 {
				cuts = append(cuts, len(prefix)+i)
			}
		}
		j := sort.Search(len(cuts), func(j int) bool {
			return tokenizer.CountTokens(text[:cuts[j]]) > limit
		})
		if j > 0 && strings.TrimSpace(text[len(prefix):cuts[j-1]]) != "" {
			prefix = text[:cuts[j-1]]
			count = tokenizer.CountTokens(prefix)
		}
	}

	if strings.TrimSpace(prefix) == "" {
		return "", 0
	}
	return prefix, count
}

// Join concatenates section texts in order, separated by a blank line
func Join(sections []model.ContextSection) string {
	texts := make([]string, 0, len(sections))
	for _, section := range sections {
		if section.Text != "" {
			texts = append(texts, section.Text)
		}
	}
	return strings.Join(texts, "\n\n")
}
