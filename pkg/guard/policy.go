// Package guard decides whether a navigation may proceed given the
// destination's access policy and the current identity.
//
// A Guard answers each Transition with a Decision: Allow, Redirect to
// another target, or Deny. Routers call Check from their own extension
// point and act on the answer; nothing is cancelled and re-issued.
//
// Checks are made in a fixed order, and the first one that applies wins:
//
//  1. The policy needs a login and the identity is not authenticated. The
//     identity is resolved. On success the authorization rule is checked;
//     on failure the unauthenticated event fires, the destination is kept
//     as the pending redirect and the user is sent to the login target.
//  2. The policy waits for the user and the identity is unresolved. It is
//     resolved, the outcome ignored, and the remaining checks run.
//  3. The user is authenticated and the policy has an authorization rule
//     they fail. The unauthorized event fires once.
//  4. The destination is the login target and the user is already logged
//     in. They go to the default post-login target instead.
//  5. Otherwise the transition is allowed.
package guard

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/aussiebroadwan/gatekeep/pkg/pattern"
)

var (
	ErrUnauthenticated = errors.New("guard: authentication required")
	ErrUnauthorized    = errors.New("guard: not authorized")
	ErrNoGroup         = errors.New("guard: authorize rule has no group")
)

// Target names a destination. State routers use Name, path routers use
// Path.
type Target struct {
	Name   string            `yaml:"name,omitempty"`
	Path   string            `yaml:"path,omitempty"`
	Params map[string]string `yaml:"params,omitempty"`
}

func (t Target) String() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Path
}

// Policy is the access policy of one destination. The fields combine.
type Policy struct {
	Authenticate bool           `yaml:"authenticate,omitempty"`
	Authorize    *AuthorizeRule `yaml:"authorize,omitempty"`
	WaitForUser  bool           `yaml:"waitForUser,omitempty"`
}

func (p Policy) needsLogin() bool { return p.Authenticate || p.Authorize != nil }

// AuthorizeRule requires membership of a group. Group is a literal name or
// "/regex/flags"; Pattern, when set, takes precedence.
type AuthorizeRule struct {
	Group   string         `yaml:"group,omitempty"`
	Pattern *regexp.Regexp `yaml:"-"`
}

func (r *AuthorizeRule) matcher() (pattern.Matcher, error) {
	switch {
	case r.Pattern != nil:
		return pattern.Regexp{Regexp: r.Pattern}, nil
	case r.Group != "":
		m, err := pattern.Parse(r.Group)
		if err != nil {
			return nil, fmt.Errorf("guard: group %q: %w", r.Group, err)
		}
		return m, nil
	default:
		return nil, ErrNoGroup
	}
}

// Transition is one attempted navigation.
type Transition struct {
	From   Target
	To     Target
	Policy Policy
}

type DecisionKind uint8

const (
	Allow DecisionKind = iota
	Redirect
	Deny
)

func (k DecisionKind) String() string {
	switch k {
	case Redirect:
		return "redirect"
	case Deny:
		return "deny"
	default:
		return "allow"
	}
}

// Decision is the answer to a Transition. Target is set for Redirect;
// Reason explains a Redirect or Deny.
type Decision struct {
	Kind   DecisionKind
	Target Target
	Reason error
}

func allow() Decision { return Decision{Kind: Allow} }

func redirectOrDeny(to *Target, reason error) Decision {
	if to != nil {
		return Decision{Kind: Redirect, Target: *to, Reason: reason}
	}
	return Decision{Kind: Deny, Reason: reason}
}
