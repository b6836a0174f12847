package pipeline

import (
	"fmt"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/loregraph/helper"
)

// DefaultEmbeddingModel produces 384-dimensional sentence embeddings
const DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"

// DefaultEmbedder creates an embedder for DefaultEmbeddingModel
func DefaultEmbedder() (*Embedder, error) {
	return NewHugotEmbedder(DefaultEmbeddingModel, "onnx/model.onnx")
}

// NewHugotEmbedder downloads (if needed) and loads a sentence transformer
// with hugot's pure Go backend. The model name becomes the model tag.
func NewHugotEmbedder(modelName string, onnxFilePath string) (*Embedder, error) {
	modelPath, err := helper.PrepareModel(modelName, onnxFilePath)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "loregraph-embedder",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	// reindexing calls Embed from several goroutines, pipeline runs are serialized
	var mu sync.Mutex
	embed := func(text string) ([]float32, error) {
		mu.Lock()
		result, err := sentencePipeline.RunPipeline([]string{text})
		mu.Unlock()
		if err != nil {
			return nil, fmt.Errorf("failed to generate embedding: %w", err)
		}

		if len(result.Embeddings) == 0 {
			return nil, fmt.Errorf("no embedding generated")
		}

		return result.Embeddings[0], nil
	}

	return &Embedder{
		Embed:    embed,
		ModelTag: modelName,
		close:    session.Destroy,
	}, nil
}
