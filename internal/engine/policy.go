package engine

import (
	"fmt"
	"strings"
)

// ErrorPolicy decides what an unexpected receive or decode error does.
type ErrorPolicy int

const (
	// PolicyFail stops the whole worker.
	PolicyFail ErrorPolicy = iota
	// PolicyIsolate closes only the failing connection.
	PolicyIsolate
)

func (p ErrorPolicy) String() string {
	switch p {
	case PolicyFail:
		return "fail"
	case PolicyIsolate:
		return "isolate"
	default:
		return fmt.Sprintf("ErrorPolicy(%d)", int(p))
	}
}

func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail":
		return PolicyFail, nil
	case "isolate":
		return PolicyIsolate, nil
	}
	return PolicyFail, fmt.Errorf("engine: unknown connection error policy %q", s)
}

// Policies are the behaviours that can change while the engine runs.
type Policies struct {
	// RedrawOnNavigate republishes the entry under the cursor as soon as it
	// moves, instead of waiting for the next frame to arrive.
	RedrawOnNavigate bool
	OnConnError      ErrorPolicy
	// FallbackOnClose makes the newest remaining connection current when the
	// current one closes. Otherwise the display stalls until the next accept.
	FallbackOnClose bool
}
