package task

import (
	"fmt"
	"regexp"
)

var bindToken = regexp.MustCompile(`\{(\w+)\}`)

// ErrMissingBind is returned when a template string references a bind
// variable that was not supplied.
type ErrMissingBind struct {
	Name string
}

func (e *ErrMissingBind) Error() string {
	return fmt.Sprintf("task: template references undefined bind variable %q", e.Name)
}

// expand substitutes every {name} token in s with bind[name]. It is the Go
// equivalent of Python's str.format(**bind): unused bind entries are
// ignored, but a token with no matching entry is an error rather than
// being left verbatim or silently dropped.
func expand(s string, bind map[string]string) (string, error) {
	var firstErr error
	result := bindToken.ReplaceAllStringFunc(s, func(tok string) string {
		if firstErr != nil {
			return tok
		}
		name := tok[1 : len(tok)-1]
		val, ok := bind[name]
		if !ok {
			firstErr = &ErrMissingBind{Name: name}
			return tok
		}
		return val
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}
