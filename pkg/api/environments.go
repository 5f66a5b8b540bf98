package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oscied/orchestra/pkg/types"
)

func (s *Server) handleEnvironmentList(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAdmin); !ok {
		return
	}
	envs, err := s.core.ListEnvironments()
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, envs)
}

func (s *Server) handleEnvironmentAdd(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAdmin); !ok {
		return
	}
	var env types.Environment
	if err := decodeJSON(r, &env); err != nil {
		fail(w, err)
		return
	}
	saved, err := s.core.SaveEnvironment(&env)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, saved)
}

func (s *Server) handleEnvironmentGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAdmin); !ok {
		return
	}
	name := chi.URLParam(r, "name")
	env, err := s.core.GetEnvironment(name)
	if err != nil {
		fail(w, err)
		return
	}
	if env == nil {
		fail(w, types.E(types.ErrNotFound, "no environment with that name"))
		return
	}
	respond(w, http.StatusOK, env)
}

func (s *Server) handleEnvironmentDelete(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAdmin); !ok {
		return
	}
	name := chi.URLParam(r, "name")
	if err := s.core.DeleteEnvironment(name); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "environment deleted")
}
