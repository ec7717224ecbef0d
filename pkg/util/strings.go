package util

import "strings"

// SplitList splits a separated list, trimming blanks and dropping empty and
// repeated elements while keeping the first occurrence order.
func SplitList(str, sep string) []string {
	list := make([]string, 0)
	seen := make(map[string]struct{})
	for _, elem := range strings.Split(str, sep) {
		elem = strings.TrimSpace(elem)
		if elem == "" {
			continue
		}
		if _, ok := seen[elem]; ok {
			continue
		}
		seen[elem] = struct{}{}
		list = append(list, elem)
	}
	return list
}
