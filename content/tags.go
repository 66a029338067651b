package content

import (
	"encoding/json"
	"errors"
	"strings"
)

// TagList accepts either a JSON array of strings or one comma separated
// string, which is what the editor form submits.
type TagList []string

func (t *TagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}

	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return errors.New("tags must be a list of strings or a comma separated string")
	}
	*t = strings.Split(joined, ",")
	return nil
}

// normalizeTags trims every tag, drops empty ones and keeps the first
// occurrence of duplicates. The result is never nil.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
