package indexer

import (
	"fmt"
	"os"
	"strings"

	"protocolScope/internal/model"
)

// LoadParamsBlob returns the params blob given inline or, when inline is
// empty, read from path. Whitespace and newlines between pairs are joined
// with '&' so long blobs can be kept one pair per line.
func LoadParamsBlob(inline, path string) (string, error) {
	inline = strings.TrimSpace(inline)
	if inline != "" && path != "" {
		return "", fmt.Errorf("%w: params and params-file are mutually exclusive", model.ErrConfig)
	}
	if inline != "" {
		return inline, nil
	}
	if path == "" {
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read params file: %w", err)
	}
	parts := make([]string, 0)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts = append(parts, strings.Trim(line, "&"))
	}
	return strings.Join(parts, "&"), nil
}
