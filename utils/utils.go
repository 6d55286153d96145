package utils

import "hash/fnv"

// ContainsString returns true iff the provided string slice hay contains string
// needle.
func ContainsString(hay []string, needle string) bool {
	for _, str := range hay {
		if str == needle {
			return true
		}
	}
	return false
}

// UniqueStrings keeps the first occurrence of every string, in order.
func UniqueStrings(strs []string) []string {
	seen := map[string]bool{}
	res := []string{}
	for _, s := range strs {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		res = append(res, s)
	}
	return res
}

var tagPalette = []string{
	"#E57373", "#F06292", "#BA68C8", "#9575CD",
	"#7986CB", "#64B5F6", "#4FC3F7", "#4DD0E1",
	"#4DB6AC", "#81C784", "#AED581", "#FFB74D",
	"#FF8A65", "#A1887F", "#90A4AE", "#FFD54F",
}

// TagColor maps a tag to a fixed palette entry by hashing it, so a tag keeps
// its color across renders and sessions.
func TagColor(tag string) string {
	h := fnv.New32a()
	h.Write([]byte(tag))
	return tagPalette[h.Sum32()%uint32(len(tagPalette))]
}
