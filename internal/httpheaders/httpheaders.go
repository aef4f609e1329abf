// Package httpheaders merges header maps whose keys compare case-insensitively.
package httpheaders

import (
	"slices"
	"strings"
)

// Merge copies src into dst. Keys match case-insensitively; an existing dst
// key is kept unless overwrite is set, in which case it is replaced by the
// src spelling. Blank keys are skipped.
func Merge(dst, src map[string]string, overwrite bool) map[string]string {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for _, key := range orderedKeys(src) {
		name := strings.TrimSpace(key)
		if name == "" {
			continue
		}
		if existing, ok := findFold(dst, name); ok {
			if !overwrite {
				continue
			}
			delete(dst, existing)
		}
		dst[name] = src[key]
	}
	return dst
}

// WithDefaults returns a new map holding headers plus every default whose
// key the caller did not set.
func WithDefaults(headers, defaults map[string]string) map[string]string {
	out := Merge(make(map[string]string, len(headers)+len(defaults)), headers, true)
	return Merge(out, defaults, false)
}

// orderedKeys makes merges deterministic when src holds two spellings of
// the same header.
func orderedKeys(src map[string]string) []string {
	keys := make([]string, 0, len(src))
	for key := range src {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := strings.Compare(fold(a), fold(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return keys
}

func findFold(headers map[string]string, name string) (string, bool) {
	want := fold(name)
	for key := range headers {
		if fold(key) == want {
			return key, true
		}
	}
	return "", false
}

func fold(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
