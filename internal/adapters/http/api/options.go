package api

import "github.com/okian/ranked/pkg/logger"

// Option configures a Server.
type Option func(*Server)

// WithRequireVoter rejects votes that carry no X-Voter-ID header.
func WithRequireVoter(require bool) Option {
	return func(s *Server) {
		s.requireVoter = require
	}
}

// WithAllowedOrigins sets the browser origins accepted by the CORS layer.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = append([]string(nil), origins...)
		}
	}
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}
