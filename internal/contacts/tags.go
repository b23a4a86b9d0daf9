package contacts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SplitTags turns the comma separated form field into a tag list. Segments
// are kept verbatim, so "a,,b" yields three tags. An empty string yields an
// empty list.
func SplitTags(raw string) []string {
	if raw == "" {
		return []string{}
	}
	return strings.Split(raw, ",")
}

// TagField is the tags value of a request body. It accepts either a comma
// separated string or a JSON array and remembers whether a usable value was
// supplied: an absent field or an empty string leaves Set false, while an
// explicit array, even an empty one, sets it.
type TagField struct {
	Set  bool
	Tags []string
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *TagField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = TagField{}
		return nil
	case len(data) > 0 && data[0] == '"':
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		f.FromForm(raw)
		return nil
	case len(data) > 0 && data[0] == '[':
		var tags []string
		if err := json.Unmarshal(data, &tags); err != nil {
			return fmt.Errorf("tags: %w", err)
		}
		if tags == nil {
			tags = []string{}
		}
		*f = TagField{Set: true, Tags: tags}
		return nil
	default:
		return fmt.Errorf("tags must be a string or an array of strings")
	}
}

// FromForm applies the comma separated form value.
func (f *TagField) FromForm(raw string) {
	if raw == "" {
		*f = TagField{}
		return
	}
	*f = TagField{Set: true, Tags: SplitTags(raw)}
}

// Ptr returns the tags to apply on update, or nil when they should be kept.
func (f TagField) Ptr() *[]string {
	if !f.Set {
		return nil
	}
	tags := f.Tags
	return &tags
}
