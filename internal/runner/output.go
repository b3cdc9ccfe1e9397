package runner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// WriteOutputs writes summary handler outputs. The keys "stdout" and
// "stderr" go to the matching writer; any other key is a file path,
// resolved against dir when relative. Outputs are written in key order.
func WriteOutputs(outputs map[string]string, stdout, stderr io.Writer, dir string) error {
	keys := make([]string, 0, len(outputs))
	for k := range outputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		content := outputs[key]

		switch key {
		case "stdout":
			if _, err := io.WriteString(stdout, content); err != nil {
				return fmt.Errorf("failed to write summary to stdout: %w", err)
			}
		case "stderr":
			if _, err := io.WriteString(stderr, content); err != nil {
				return fmt.Errorf("failed to write summary to stderr: %w", err)
			}
		default:
			path := key
			if !filepath.IsAbs(path) && dir != "" {
				path = filepath.Join(dir, path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("failed to create directory for %s: %w", key, err)
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return fmt.Errorf("failed to write summary file %s: %w", key, err)
			}
		}
	}
	return nil
}
