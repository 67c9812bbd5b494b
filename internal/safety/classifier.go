// Package safety implements the command classifier that decides whether a
// named operation may execute. The classifier is a pure function of its
// configured name sets; it performs no I/O and holds no mutable state.
package safety

import (
	"fmt"

	"github.com/kubechat-dev/kubechat/internal/config"
)

// Decision is the classifier's verdict category.
type Decision string

const (
	DecisionSafe              Decision = "safe"
	DecisionNeedsConfirmation Decision = "needs_confirmation"
	DecisionForbidden         Decision = "forbidden"
	DecisionUnknown           Decision = "unknown"
)

// Verdict is the outcome of classifying one operation name.
type Verdict struct {
	Decision Decision
	Reason   string
}

// Allowed reports whether the operation may proceed to execution.
func (v Verdict) Allowed() bool {
	return v.Decision == DecisionSafe
}

// Classifier maps operation names to safety verdicts using three disjoint,
// configuration-defined name sets.
type Classifier struct {
	safe      map[string]struct{}
	confirm   map[string]struct{}
	forbidden map[string]struct{}
}

// NewClassifier builds a classifier from the configured safety sets.
func NewClassifier(cfg config.SafetyConfig) *Classifier {
	return &Classifier{
		safe:      toSet(cfg.SafeOperations),
		confirm:   toSet(cfg.ConfirmOperations),
		forbidden: toSet(cfg.ForbiddenOperations),
	}
}

// Classify returns the verdict for an operation name. Forbidden names are
// checked first and never overridden by confirm. Names in no set are Unknown
// and treated as not executable.
func (c *Classifier) Classify(operation string, confirm bool) Verdict {
	if _, ok := c.forbidden[operation]; ok {
		return Verdict{
			Decision: DecisionForbidden,
			Reason:   fmt.Sprintf("operation %q is forbidden for safety", operation),
		}
	}

	if _, ok := c.confirm[operation]; ok {
		if confirm {
			return Verdict{Decision: DecisionSafe, Reason: "confirmed write operation"}
		}
		return Verdict{
			Decision: DecisionNeedsConfirmation,
			Reason:   fmt.Sprintf("operation %q modifies cluster state and requires confirmation", operation),
		}
	}

	if _, ok := c.safe[operation]; ok {
		return Verdict{Decision: DecisionSafe, Reason: "read-only operation"}
	}

	return Verdict{
		Decision: DecisionUnknown,
		Reason:   fmt.Sprintf("operation %q is not in the allowed list", operation),
	}
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}
