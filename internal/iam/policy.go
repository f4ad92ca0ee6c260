package iam

import "strings"

// Evaluate is the pure decision function of spec §4.5: it flattens rules
// from every applicable policy and applies deny-over-allow, default-deny
// semantics. Policy ordering never affects the result.
func Evaluate(action Action, resource string, policies []Policy) bool {
	denied := false
	allowed := false
	for _, p := range policies {
		for _, r := range p.Rules {
			if r.Action != action {
				continue
			}
			if !matchResource(r.Resource, resource) {
				continue
			}
			switch r.Effect {
			case Deny:
				denied = true
			case Allow:
				allowed = true
			}
		}
	}
	if denied {
		return false
	}
	return allowed
}

// matchResource implements the glob semantics of spec §4.5: a trailing "*"
// is a prefix wildcard, otherwise the pattern must match exactly.
func matchResource(pattern, resource string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(resource, prefix)
	}
	return pattern == resource
}
