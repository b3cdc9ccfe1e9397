package script

import (
	"encoding/json"
	"fmt"

	"github.com/lokalise/nginx-loadtest/internal/summary"
)

// HandleSummary renders the end-of-test data twice: a coloured text report
// for stdout and the full data as summary.json.
func (s *Script) HandleSummary(data *summary.Data) (map[string]string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode summary: %w", err)
	}

	return map[string]string{
		"stdout":       summary.TextSummary(data, summary.TextOptions{Indent: " ", EnableColors: true}),
		"summary.json": string(raw),
	}, nil
}
