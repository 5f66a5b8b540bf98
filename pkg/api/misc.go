package api

import (
	"net/http"

	"github.com/oscied/orchestra/pkg/auth"
)

var (
	ruleRoot        = auth.Rule{AllowRoot: true}
	ruleNode        = auth.Rule{AllowNode: true}
	ruleRootOrAny   = auth.Rule{AllowRoot: true, AllowAny: true}
	ruleRootOrAdmin = auth.Rule{AllowRoot: true, Role: "admin_platform"}
)

// handleAbout is the only anonymous endpoint.
func (s *Server) handleAbout(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, s.core.About())
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRoot); !ok {
		return
	}
	if err := s.core.Flush(); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "database flushed")
}

// handleLogin echoes the authenticated principal's user record.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p, err := s.principal(r)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, p.User.Sanitized())
}
