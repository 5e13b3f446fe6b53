package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/docwiz/wizsync/internal/wizard"
)

// Decision is the answer to a conflict.
type Decision int

const (
	// KeepLocal leaves the local file untouched. The artifact stays out of sync.
	KeepLocal Decision = iota
	// OverwriteLocal replaces the local file with the remote content.
	OverwriteLocal
)

func (d Decision) String() string {
	switch d {
	case KeepLocal:
		return "keep-local"
	case OverwriteLocal:
		return "overwrite"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Conflict describes a local file whose content differs from the remote copy.
type Conflict struct {
	Wizard wizard.Wizard
	Kind   wizard.ArtifactKind
	Path   string
	Local  []byte
	Remote []byte
}

// Resolver decides what happens to a conflicting local file.
type Resolver interface {
	Resolve(ctx context.Context, c Conflict) (Decision, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, c Conflict) (Decision, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, c Conflict) (Decision, error) {
	return f(ctx, c)
}

// Always returns a resolver that gives the same decision for every conflict.
func Always(d Decision) Resolver {
	return ResolverFunc(func(context.Context, Conflict) (Decision, error) {
		return d, nil
	})
}

// Policy names how conflicts are resolved.
type Policy string

const (
	PolicyPrompt    Policy = "prompt"
	PolicyKeepLocal Policy = "keep-local"
	PolicyOverwrite Policy = "overwrite"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyPrompt, PolicyKeepLocal, PolicyOverwrite:
		return p, nil
	case "":
		return PolicyPrompt, nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q (want prompt, keep-local or overwrite)", s)
	}
}
