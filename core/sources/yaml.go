package sources

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/siherrmann/loregraph/helper"
	"github.com/siherrmann/loregraph/model"
	"gopkg.in/yaml.v3"
)

// YAMLDocuments reads structured sections from <dir>/<key>.yaml (or .yml).
// Files are read on every call, so edits show up without a restart.
type YAMLDocuments struct {
	dir string
}

// NewYAMLDocuments creates a document store over a directory
func NewYAMLDocuments(dir string) *YAMLDocuments {
	return &YAMLDocuments{dir: dir}
}

// GetSections decodes the document stored under key. Missing sections stay nil.
func (y *YAMLDocuments) GetSections(ctx context.Context, key string) (*model.DocumentSections, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" || strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return nil, helper.NewError("yaml documents", fmt.Errorf("invalid document key %q", key))
	}

	var data []byte
	var err error
	for _, ext := range []string{".yaml", ".yml"} {
		data, err = os.ReadFile(filepath.Join(y.dir, key+ext))
		if err == nil || !errors.Is(err, fs.ErrNotExist) {
			break
		}
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil, helper.NewError("yaml documents "+key, ErrNotFound)
	}
	if err != nil {
		return nil, helper.NewError("read document", err)
	}

	sections := &model.DocumentSections{}
	if err := yaml.Unmarshal(data, sections); err != nil {
		return nil, helper.NewError("decode document "+key, err)
	}
	sections.Key = key

	return sections, nil
}
