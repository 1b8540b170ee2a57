package collection

import (
	"strings"

	"github.com/google/uuid"
)

// IsEmpty reports whether the string behind p is empty or whitespace
func IsEmpty(p *string) bool {
	if p == nil {
		return true
	}
	return strings.TrimSpace(*p) == ""
}

// AnyEmpty reports whether any of the strings behind ps is empty
func AnyEmpty(ps []*string) bool {
	for i := range ps {
		if IsEmpty(ps[i]) {
			return true
		}
	}
	return false
}

// StringInList returns true if s matches one of the list entries
func StringInList(s string, list []string) bool {
	for i := range list {
		if s == list[i] {
			return true
		}
	}
	return false
}

// UniqueUUIDs drops duplicate ids while keeping the original order
func UniqueUUIDs(in []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(in))
	seen := make(map[uuid.UUID]struct{}, len(in))
	for i := range in {
		if _, exist := seen[in[i]]; exist {
			continue
		}
		seen[in[i]] = struct{}{}
		out = append(out, in[i])
	}
	return out
}
