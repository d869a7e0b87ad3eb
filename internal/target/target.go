package target

import (
	"errors"
	"fmt"
	"strings"
)

// Kind selects which window attribute a Spec is compared against.
type Kind int

const (
	ProcessName Kind = iota
	WindowClass
	TitleSubstring
)

func (k Kind) String() string {
	switch k {
	case ProcessName:
		return "process"
	case WindowClass:
		return "class"
	case TitleSubstring:
		return "title"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

var (
	ErrEmptyValue  = errors.New("target value is empty")
	ErrUnknownKind = errors.New("unknown target kind")
)

// ParseKind accepts the selector names used on the command line and in the
// config file.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "process", "proc", "exe":
		return ProcessName, nil
	case "class", "win-class", "window-class":
		return WindowClass, nil
	case "title", "title-contains":
		return TitleSubstring, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Spec is the user's window-selection criterion. It is immutable; edits
// replace the whole value.
type Spec struct {
	kind  Kind
	value string
}

func New(kind Kind, value string) (Spec, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return Spec{}, ErrEmptyValue
	}
	switch kind {
	case ProcessName, WindowClass, TitleSubstring:
	default:
		return Spec{}, fmt.Errorf("%w: %d", ErrUnknownKind, int(kind))
	}
	return Spec{kind: kind, value: v}, nil
}

// Parse builds a Spec from a selector name and value.
func Parse(kind, value string) (Spec, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return Spec{}, err
	}
	return New(k, value)
}

func (s Spec) Kind() Kind     { return s.kind }
func (s Spec) Value() string  { return s.value }
func (s Spec) String() string { return s.kind.String() + "=" + s.value }

// Match compares an attribute already resolved for the spec's kind:
// process names ignore case, classes must match exactly, titles need only
// contain the value.
func (s Spec) Match(attr string) bool {
	switch s.kind {
	case ProcessName:
		return strings.EqualFold(attr, s.value)
	case WindowClass:
		return attr == s.value
	case TitleSubstring:
		return strings.Contains(attr, s.value)
	}
	return false
}
