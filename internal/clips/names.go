package clips

import (
	"fmt"
	"strconv"
	"strings"
)

// StripBrackets removes one pair of surrounding brackets: "[Npc:42]"
// becomes "Npc:42". Text without both brackets is returned unchanged.
func StripBrackets(name string) string {
	if len(name) >= 2 && name[0] == '[' && name[len(name)-1] == ']' {
		return name[1 : len(name)-1]
	}
	return name
}

// ParseIdentity extracts the numeric object id from an instance name.
// The id is the text after the last ':', or the whole name when there is
// none. Brackets are optional.
func ParseIdentity(name string) (int64, error) {
	text := StripBrackets(name)
	suffix := text
	if i := strings.LastIndexByte(text, ':'); i >= 0 {
		suffix = text[i+1:]
	}
	if suffix == "" {
		return 0, fmt.Errorf("instance name %q has no id", name)
	}
	id, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("instance name %q: id %q is not numeric", name, suffix)
	}
	return id, nil
}
