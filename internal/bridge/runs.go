package bridge

import (
	"fmt"

	"github.com/roach88/rulebridge/internal/clips"
)

// Separator delimits argument runs.
const Separator = "->"

// IsSeparator reports whether v is the separator symbol. Strings and other
// types with the same text are data.
func IsSeparator(v clips.Value) bool {
	return clips.IsSymbol(v, Separator)
}

// SplitRuns groups arguments 2..N into runs delimited by separators.
// Argument 1 must itself be a separator. The run after the last separator
// is always included, even when empty.
func SplitRuns(args clips.Args) ([][]clips.Value, error) {
	if args.Count() < 1 {
		return nil, fmt.Errorf("missing leading %s", Separator)
	}
	if first := args.At(1); !IsSeparator(first) {
		return nil, fmt.Errorf("first argument must be %s, got %s %q",
			Separator, first.Type(), clips.Format(first))
	}

	var runs [][]clips.Value
	current := []clips.Value{}
	for i := 2; i <= args.Count(); i++ {
		v := args.At(i)
		if IsSeparator(v) {
			runs = append(runs, current)
			current = []clips.Value{}
			continue
		}
		current = append(current, v)
	}
	return append(runs, current), nil
}
