package metadata

import (
	"fmt"
	"strconv"
	"strings"
)

// FullScope is the sentinel scopeKey meaning "the whole file".
const FullScope = "full"

// ScopeKey canonicalizes a requested line range into a scopeKey. A
// range spanning exactly [1..totalLines] canonicalizes to FullScope.
func ScopeKey(start, end, totalLines int) string {
	if start == 1 && end == totalLines {
		return FullScope
	}
	return RangeScope(start, end)
}

// RangeScope formats a range scopeKey token, independent of any file's
// total line count.
func RangeScope(start, end int) string {
	return fmt.Sprintf("r:%d:%d", start, end)
}

// ParseScope reports whether key is a well-formed scopeKey and, for
// range scopes, its start/end. full has isRange=false.
func ParseScope(key string) (isRange bool, start, end int, ok bool) {
	if key == FullScope {
		return false, 0, 0, true
	}
	rest, found := strings.CutPrefix(key, "r:")
	if !found {
		return false, 0, 0, false
	}
	parts := strings.SplitN(rest, ":", 2)
	if len(parts) != 2 {
		return false, 0, 0, false
	}
	s, err1 := strconv.Atoi(parts[0])
	e, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || s < 1 || e < s {
		return false, 0, 0, false
	}
	return true, s, e, true
}
