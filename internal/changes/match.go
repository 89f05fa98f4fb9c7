package changes

import (
	"path"
	"strings"
)

// matchGlobPattern matches a slash-separated path against a glob where
// "**" spans any number of segments and other segments follow path.Match.
func matchGlobPattern(p, pattern string) bool {
	return matchSegments(strings.Split(p, "/"), strings.Split(pattern, "/"))
}

func matchSegments(segs, pattern []string) bool {
	for len(pattern) > 0 {
		head := pattern[0]
		pattern = pattern[1:]
		if head == "**" {
			if len(pattern) == 0 {
				return true
			}
			for i := range len(segs) + 1 {
				if matchSegments(segs[i:], pattern) {
					return true
				}
			}
			return false
		}
		if len(segs) == 0 {
			return false
		}
		if ok, err := path.Match(head, segs[0]); err != nil || !ok {
			return false
		}
		segs = segs[1:]
	}
	return len(segs) == 0
}
