package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/hyinfo/phishgate/internal/core"
)

func encodeURLs(urls []string) (string, error) {
	if len(urls) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(urls)
	if err != nil {
		return "", fmt.Errorf("failed to encode url list: %w", err)
	}
	return string(data), nil
}

func decodeURLs(raw string) []string {
	if raw == "" {
		return nil
	}
	var urls []string
	if err := json.Unmarshal([]byte(raw), &urls); err != nil {
		return nil
	}
	return urls
}

func encodeAttachments(atts []core.Attachment) (string, error) {
	if len(atts) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(atts)
	if err != nil {
		return "", fmt.Errorf("failed to encode attachment list: %w", err)
	}
	return string(data), nil
}

func decodeAttachments(raw string) []core.Attachment {
	if raw == "" {
		return nil
	}
	var atts []core.Attachment
	if err := json.Unmarshal([]byte(raw), &atts); err != nil {
		return nil
	}
	return atts
}

// buildUpdate turns a field map into a deterministic SET clause with
// positional arguments. Unknown columns are rejected outright.
func buildUpdate(fields map[string]interface{}) (string, []interface{}, error) {
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("no fields to update")
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		if !allowedColumns[col] {
			return "", nil, fmt.Errorf("unknown column %q", col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	clause := ""
	args := make([]interface{}, 0, len(cols))
	for i, col := range cols {
		if i > 0 {
			clause += ", "
		}
		clause += col + " = ?"
		args = append(args, fields[col])
	}
	return clause, args, nil
}
