package harvest

import "strings"

// ScopeFilter decides whether a community's content is eligible for
// indexing: either the community is explicitly allow-listed, or its name
// contains one of the topic keywords.
type ScopeFilter struct {
	allowed  map[string]struct{}
	keywords []string
}

// NewScopeFilter builds a filter from the explicit allow-list and the topic
// keywords. Keyword matching is case-insensitive.
func NewScopeFilter(allowed, keywords []string) *ScopeFilter {
	set := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		set[name] = struct{}{}
	}
	lowered := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
			lowered = append(lowered, kw)
		}
	}
	return &ScopeFilter{allowed: set, keywords: lowered}
}

// Allows reports whether content from community is in scope.
func (f *ScopeFilter) Allows(community string) bool {
	if _, ok := f.allowed[community]; ok {
		return true
	}
	lowered := strings.ToLower(community)
	for _, kw := range f.keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
