// Package identity resolves and caches who the current user is.
//
// Identity is a three-way variant: not yet known, known to be anonymous, or
// an authenticated User. The Cache is the only writer; everything else
// reads it or subscribes to changes.
package identity

import (
	"errors"

	"github.com/aussiebroadwan/gatekeep/pkg/authsdk"
	"github.com/aussiebroadwan/gatekeep/pkg/pattern"
)

// ErrNotAuthenticated means the identity API reports no session.
var ErrNotAuthenticated = errors.New("identity: not authenticated")

// State tells whether the identity has been resolved, and to what.
type State uint8

const (
	Unresolved State = iota
	Anonymous
	Authenticated
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return "unresolved"
	}
}

// Identity is the resolved state. User is non-nil exactly when State is
// Authenticated. The zero value is Unresolved.
type Identity struct {
	State State
	User  *User
}

// AnonymousIdentity is the resolved, logged-out state.
func AnonymousIdentity() Identity { return Identity{State: Anonymous} }

// AuthenticatedAs wraps u. A nil user yields AnonymousIdentity.
func AuthenticatedAs(u *User) Identity {
	if u == nil {
		return AnonymousIdentity()
	}
	return Identity{State: Authenticated, User: u}
}

func (i Identity) IsResolved() bool      { return i.State != Unresolved }
func (i Identity) IsAuthenticated() bool { return i.State == Authenticated && i.User != nil }

// User is the account behind an authenticated session.
type User struct {
	authsdk.Account
}

// InGroup reports whether the user belongs to the group with exactly this
// name.
func (u *User) InGroup(name string) bool {
	for _, g := range u.Groups {
		if g.Name == name {
			return true
		}
	}
	return false
}

// GroupTest reports whether any group name is accepted by m.
func (u *User) GroupTest(m pattern.Matcher) bool {
	if m == nil {
		return false
	}
	for _, g := range u.Groups {
		if m.Match(g.Name) {
			return true
		}
	}
	return false
}
