package nth

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	nestedPrefix = "&:nth-child("
	idMarker     = ":nth-child-"
)

// SelectorName returns name of style entry holding pseudo-rule id owned by
// element key.
func SelectorName(owner string, id int) string {
	return owner + idMarker + strconv.Itoa(id)
}

// Key describes property key recognized as pseudo-rule.
type Key struct {
	Pattern string // set for "&:nth-child(pattern)"
	ID      int    // set for already rewritten ":nth-child-N"
}

// ParseKey recognizes "&:nth-child(pattern)" and ":nth-child-N" keys.
func ParseKey(key string) (Key, bool) {
	if rest, ok := strings.CutPrefix(key, nestedPrefix); ok {
		pattern, ok := strings.CutSuffix(rest, ")")
		if !ok {
			return Key{}, false
		}
		return Key{Pattern: pattern}, true
	}
	if rest, ok := strings.CutPrefix(key, idMarker); ok {
		id, err := strconv.Atoi(rest)
		if err != nil || id <= 0 {
			return Key{}, false
		}
		return Key{ID: id}, true
	}
	return Key{}, false
}

// String returns canonical form of the key.
func (k Key) String() string {
	if k.ID > 0 {
		return idMarker + strconv.Itoa(k.ID)
	}
	return fmt.Sprintf("%s%s)", nestedPrefix, k.Pattern)
}
