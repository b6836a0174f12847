package pipeline

import (
	"fmt"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/loregraph/helper"
)

// DefaultMentionModel is a distilbert NER model tagging PER, ORG, LOC and MISC
const DefaultMentionModel = "KnightsAnalytics/distilbert-NER"

// DefaultMentionExtractor loads DefaultMentionModel into a hugot token
// classification pipeline. The background verification tier uses it to spot
// names in generated text that the graph does not know.
func DefaultMentionExtractor() (MentionExtractFunc, error) {
	modelPath, err := helper.PrepareModel(DefaultMentionModel, "model.onnx")
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "loregraph-mentions",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}),
		},
	}
	nerPipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create NER pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create NER pipeline: %w", err)
	}

	var mu sync.Mutex
	return func(text string) ([]Mention, error) {
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}

		mu.Lock()
		result, err := nerPipeline.RunPipeline([]string{text})
		mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("failed to run NER: %w", err)
		}
		if len(result.Entities) == 0 {
			return nil, nil
		}

		mentions := make([]Mention, 0, len(result.Entities[0]))
		for _, entity := range result.Entities[0] {
			mentions = append(mentions, Mention{
				Text:  strings.TrimSpace(entity.Word),
				Label: NormalizeMentionLabel(entity.Entity),
				Score: entity.Score,
				Start: int(entity.Start),
				End:   int(entity.End),
			})
		}
		return mentions, nil
	}, nil
}

// NormalizeMentionLabel strips BIO prefixes (B-PER, I-PER -> PER)
func NormalizeMentionLabel(label string) string {
	if strings.HasPrefix(label, "B-") || strings.HasPrefix(label, "I-") {
		return label[2:]
	}
	return label
}
