package api

import (
	"net/http"

	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

func (s *Server) handleEncoderList(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAny); !ok {
		return
	}
	respond(w, http.StatusOK, s.core.ListEncoders())
}

func (s *Server) handleProfileCount(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAny); !ok {
		return
	}
	spec, err := specParam(r)
	if err != nil {
		fail(w, err)
		return
	}
	n, err := s.core.CountProfiles(spec)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, n)
}

func (s *Server) handleProfileList(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAny); !ok {
		return
	}
	q, _, err := parseQuery(r)
	if err != nil {
		fail(w, err)
		return
	}
	profiles, err := s.core.ListProfiles(q)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, profiles)
}

func (s *Server) handleProfileAdd(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAny); !ok {
		return
	}
	var profile types.TransformProfile
	if err := decodeJSON(r, &profile); err != nil {
		fail(w, err)
		return
	}
	saved, err := s.core.SaveProfile(&profile)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, saved)
}

func (s *Server) handleProfileGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAny); !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	profile, err := s.core.GetProfile(storage.ByID(id))
	if err != nil {
		fail(w, err)
		return
	}
	if profile == nil {
		fail(w, types.E(types.ErrNotFound, "no transformation profile with that id"))
		return
	}
	respond(w, http.StatusOK, profile)
}

func (s *Server) handleProfileDelete(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAny); !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	if err := s.core.DeleteProfile(id); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "transformation profile deleted")
}
