package manifest

import (
	"fmt"
	"sort"

	"github.com/bytedance/sonic"
	"github.com/tidwall/gjson"
)

// BatchEntry is one package listed in a batch manifest. Path is relative
// to the listing URL.
type BatchEntry struct {
	Group   string `json:"-"`
	Path    string `json:"path"`
	ID      string `json:"id"`
	Name    string `json:"name"`
	Author  string `json:"author,omitempty"`
	Icon    string `json:"icon,omitempty"`
	Version string `json:"version,omitempty"`
	Kind    string `json:"type,omitempty"`
	Schema  *int   `json:"schema,omitempty"`
}

// ParseBatch reads a batch listing: an object whose keys are kind groups
// mapping to arrays of entries. Groups are returned in key order; entries
// without a path are dropped.
func ParseBatch(data []byte) ([]BatchEntry, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: batch listing", ErrMalformed)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: batch listing must be an object", ErrMalformed)
	}

	lists := make(map[string]gjson.Result)
	groups := make([]string, 0)
	root.ForEach(func(key, value gjson.Result) bool {
		if value.IsArray() {
			lists[key.String()] = value
			groups = append(groups, key.String())
		}
		return true
	})
	sort.Strings(groups)

	var entries []BatchEntry
	for _, group := range groups {
		for _, item := range lists[group].Array() {
			if !item.IsObject() {
				continue
			}
			var e BatchEntry
			if err := sonic.UnmarshalString(item.Raw, &e); err != nil {
				return nil, fmt.Errorf("%w: %s entry: %v", ErrMalformed, group, err)
			}
			if e.Path == "" {
				continue
			}
			e.Group = group
			entries = append(entries, e)
		}
	}
	return entries, nil
}
