package huaban_api

import "math/rand/v2"

// IdentityProvider supplies the User-Agent presented on each request.
// Implementations must be safe for concurrent use.
type IdentityProvider interface {
	UserAgent() string
}

// StaticIdentity always presents the same User-Agent.
type StaticIdentity string

func (s StaticIdentity) UserAgent() string {
	if s == "" {
		return DefaultUserAgent
	}
	return string(s)
}

// RotatingIdentity picks a User-Agent uniformly at random for every request.
type RotatingIdentity struct {
	agents []string
}

// NewRotatingIdentity returns a provider rotating over agents.
// An empty list falls back to DefaultUserAgent.
func NewRotatingIdentity(agents []string) *RotatingIdentity {
	filtered := make([]string, 0, len(agents))
	for _, a := range agents {
		if a != "" {
			filtered = append(filtered, a)
		}
	}
	return &RotatingIdentity{agents: filtered}
}

func (r *RotatingIdentity) UserAgent() string {
	if len(r.agents) == 0 {
		return DefaultUserAgent
	}
	return r.agents[rand.IntN(len(r.agents))]
}
