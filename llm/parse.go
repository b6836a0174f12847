package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseJSON decodes the first JSON object of a model response into T.
// Markdown fences and chatter around the object are ignored.
func ParseJSON[T any](response string) (T, error) {
	var result T

	start := strings.IndexByte(response, '{')
	if start == -1 {
		return result, fmt.Errorf("no JSON object in response")
	}
	end := strings.LastIndexByte(response, '}')
	if end < start {
		return result, fmt.Errorf("unterminated JSON object in response")
	}

	data := response[start : end+1]
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return result, fmt.Errorf("error unmarshalling response: %w", err)
	}
	return result, nil
}
