package ratelimit

import "time"

// Route tags name quota classes. Routes declare a tag; the policy table maps
// tags to quotas, so tuning a class is a configuration change, not a code
// change.
const (
	TagDefault    = "default"
	TagAuth       = "auth"
	TagGeneration = "generation"
	TagSearch     = "search"
	TagExport     = "export"
)

// presets are the built-in quotas per route tag.
var presets = map[string]Policy{
	TagDefault:    {Limit: 60, Window: time.Minute, Scope: ScopeIP},
	TagAuth:       {Limit: 5, Window: time.Minute, Scope: ScopeIP},
	TagGeneration: {Limit: 5, Window: time.Minute, Scope: ScopeUser, IncludeEndpoint: true},
	TagSearch:     {Limit: 10, Window: time.Minute, Scope: ScopeUser},
	TagExport:     {Limit: 2, Window: time.Minute, Scope: ScopeUser, IncludeEndpoint: true},
}

// PolicyFor resolves the quota for a route tag, preferring configured
// overrides over the built-in presets. Unknown tags get the default policy.
func (l *Limiter) PolicyFor(tag string) Policy {
	if o, ok := l.overrides[tag]; ok {
		return Policy{
			Limit:           o.Limit,
			Window:          o.Window,
			Scope:           Scope(o.Scope),
			IncludeEndpoint: o.IncludeEndpoint,
		}
	}
	if p, ok := presets[tag]; ok {
		return p
	}
	return presets[TagDefault]
}
