package grpclink

import (
	"fmt"
	"strings"
)

// Path is a validated call path of the form /{service}/{method}, for example
// "/greeter.Greeter/SayHello". It is combined with the dispatcher origin to
// form the full request target.
type Path struct {
	p string
}

// NewPath validates and returns a call path.
func NewPath(s string) (Path, error) {
	if !strings.HasPrefix(s, "/") {
		return Path{}, fmt.Errorf("call path %q must begin with '/'", s)
	}
	parts := strings.Split(s[1:], "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Path{}, fmt.Errorf("call path %q must have the form /{service}/{method}", s)
	}
	return Path{p: s}, nil
}

// MustPath is like NewPath but panics on an invalid path. Call paths are
// developer-controlled (typically emitted by code generation), so an invalid
// one is a programming error, not a runtime condition.
func MustPath(s string) Path {
	p, err := NewPath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string { return p.p }
