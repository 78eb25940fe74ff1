package client

import "github.com/kumoedu/kumo/core/user"

// Decision is the outcome of a route guard evaluation.
type Decision int

const (
	// DecisionLoading means the session is still rehydrating; show a
	// placeholder, render nothing protected yet.
	DecisionLoading Decision = iota
	// DecisionUnauthenticated means there is no session; redirect to login.
	DecisionUnauthenticated
	// DecisionDenied means the user is signed in but lacks a required role.
	DecisionDenied
	// DecisionGranted means the protected content may be shown.
	DecisionGranted
)

func (d Decision) String() string {
	switch d {
	case DecisionLoading:
		return "loading"
	case DecisionUnauthenticated:
		return "unauthenticated"
	case DecisionDenied:
		return "denied"
	case DecisionGranted:
		return "granted"
	}
	return "unknown"
}

// Guard evaluates a session against a route's role requirements. Checks are
// ordered: an in-flight rehydration always wins, then authentication, then
// the role gate. An empty role list admits any authenticated user.
func Guard(s Session, allowed ...user.Role) Decision {
	if s.Loading {
		return DecisionLoading
	}
	if !s.IsAuthenticated() {
		return DecisionUnauthenticated
	}
	if len(allowed) == 0 {
		return DecisionGranted
	}
	for _, role := range allowed {
		if s.User.Role == role {
			return DecisionGranted
		}
	}
	return DecisionDenied
}
