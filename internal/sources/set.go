package sources

import (
	"github.com/brandpulse/social-mentions-bot/internal/config"
)

// Set indexes platform clients by platform code, keeping registration order
type Set struct {
	byName map[string]Source
	order  []string
}

// NewSet builds a Set from the given sources. Later sources with the same name replace earlier ones.
func NewSet(srcs ...Source) *Set {
	s := &Set{byName: make(map[string]Source, len(srcs))}
	for _, src := range srcs {
		if _, exists := s.byName[src.GetName()]; !exists {
			s.order = append(s.order, src.GetName())
		}
		s.byName[src.GetName()] = src
	}
	return s
}

// NewSetFromConfig creates the four platform clients from configuration
func NewSetFromConfig(cfg *config.Config) *Set {
	return NewSet(
		NewFacebookSource(cfg.GraphAPIURL, cfg.FBPageID, cfg.PageAccessToken),
		NewInstagramSource(cfg.GraphAPIURL, cfg.IGUserID, cfg.IGAccessToken),
		NewTwitterSource(cfg.XAPIURL, cfg.XUserID, cfg.XBearerToken, cfg.XUserAccessToken),
		NewLinkedInSource(cfg.LinkedInAPIURL, cfg.LinkedInAuthorURN, cfg.LinkedInToken, cfg.LinkedInAPIVersion),
	)
}

// Get returns the source registered for a platform code
func (s *Set) Get(name string) (Source, bool) {
	src, ok := s.byName[name]
	return src, ok
}

// All returns every registered source in registration order
func (s *Set) All() []Source {
	out := make([]Source, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name])
	}
	return out
}

// Enabled returns the sources that have credentials configured
func (s *Set) Enabled() []Source {
	var out []Source
	for _, src := range s.All() {
		if src.IsEnabled() {
			out = append(out, src)
		}
	}
	return out
}

// Names lists the registered platform codes
func (s *Set) Names() []string {
	return append([]string(nil), s.order...)
}
