package api

import (
	"net/http"

	"github.com/oscied/orchestra/pkg/auth"
	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

func (s *Server) handleUserCount(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAny); !ok {
		return
	}
	spec, err := specParam(r)
	if err != nil {
		fail(w, err)
		return
	}
	n, err := s.core.CountUsers(spec)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, n)
}

func (s *Server) handleUserList(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAdmin); !ok {
		return
	}
	q, _, err := parseQuery(r)
	if err != nil {
		fail(w, err)
		return
	}
	users, err := s.core.ListUsers(q)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, users)
}

func (s *Server) handleUserAdd(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAdmin); !ok {
		return
	}
	var user types.User
	if err := decodeJSON(r, &user); err != nil {
		fail(w, err)
		return
	}
	saved, err := s.core.SaveUser(&user, true)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, saved)
}

func (s *Server) handleUserGet(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAny); !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	user, err := s.core.GetUser(storage.ByID(id))
	if err != nil {
		fail(w, err)
		return
	}
	if user == nil {
		fail(w, types.E(types.ErrNotFound, "no user with that id"))
		return
	}
	respond(w, http.StatusOK, user)
}

// userPatch carries the updatable user fields, absent fields unchanged.
type userPatch struct {
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	Mail          *string `json:"mail"`
	Secret        *string `json:"secret"`
	AdminPlatform *bool   `json:"admin_platform"`
}

func (s *Server) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	// Credentials come first, even a malformed id answers 401 to an
	// anonymous caller.
	p, err := s.principal(r)
	if err != nil {
		fail(w, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	if err := auth.Require(p, auth.Rule{AllowRoot: true, Role: "admin_platform", ID: id}); err != nil {
		fail(w, err)
		return
	}

	var patch userPatch
	if err := decodeJSON(r, &patch); err != nil {
		fail(w, err)
		return
	}

	user, err := s.core.Store().GetUser(storage.ByID(id))
	if err != nil {
		fail(w, err)
		return
	}
	if user == nil {
		fail(w, types.E(types.ErrNotFound, "no user with that id"))
		return
	}

	if patch.FirstName != nil {
		user.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		user.LastName = *patch.LastName
	}
	if patch.Mail != nil {
		user.Mail = *patch.Mail
	}
	hashSecret := false
	if patch.Secret != nil {
		user.Secret = *patch.Secret
		hashSecret = true
	}
	if patch.AdminPlatform != nil {
		// Only platform administration may grant or drop the privilege.
		if err := auth.Require(p, ruleRootOrAdmin); err != nil {
			fail(w, err)
			return
		}
		user.AdminPlatform = *patch.AdminPlatform
	}

	saved, err := s.core.SaveUser(user, hashSecret)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, saved)
}

func (s *Server) handleUserDelete(w http.ResponseWriter, r *http.Request) {
	p, err := s.principal(r)
	if err != nil {
		fail(w, err)
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	if err := auth.Require(p, auth.Rule{AllowRoot: true, Role: "admin_platform", ID: id}); err != nil {
		fail(w, err)
		return
	}
	if err := s.core.DeleteUser(id); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "user deleted")
}
