package api

import (
	"net/http"

	"github.com/oscied/orchestra/pkg/auth"
	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

func (s *Server) handleMediaCount(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAny); !ok {
		return
	}
	spec, err := specParam(r)
	if err != nil {
		fail(w, err)
		return
	}
	n, err := s.core.CountMedias(spec)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, n)
}

func (s *Server) listMedias(w http.ResponseWriter, r *http.Request, loadFields bool) {
	if _, ok := s.require(w, r, ruleRootOrAny); !ok {
		return
	}
	q, load, err := parseQuery(r)
	if err != nil {
		fail(w, err)
		return
	}
	medias, err := s.core.ListMedias(q, loadFields && load)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, medias)
}

func (s *Server) handleMediaList(w http.ResponseWriter, r *http.Request) {
	s.listMedias(w, r, true)
}

// handleMediaHead lists without resolving related entities.
func (s *Server) handleMediaHead(w http.ResponseWriter, r *http.Request) {
	s.listMedias(w, r, false)
}

func (s *Server) handleMediaAdd(w http.ResponseWriter, r *http.Request) {
	p, ok := s.require(w, r, ruleRootOrAny)
	if !ok {
		return
	}
	var media types.Media
	if err := decodeJSON(r, &media); err != nil {
		fail(w, err)
		return
	}
	// Users always own their uploads; only root may assign another owner.
	if !p.IsRoot() || media.UserID == "" {
		media.UserID = p.User.ID
	}
	saved, err := s.core.SaveMedia(&media)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, saved)
}

func (s *Server) getMedia(w http.ResponseWriter, r *http.Request, loadFields bool) {
	if _, ok := s.require(w, r, ruleRootOrAny); !ok {
		return
	}
	id, err := uuidParam(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	_, load, err := parseQuery(r)
	if err != nil {
		fail(w, err)
		return
	}
	media, err := s.core.GetMedia(storage.ByID(id), loadFields && load)
	if err != nil {
		fail(w, err)
		return
	}
	if media == nil {
		fail(w, types.E(types.ErrNotFound, "no media asset with that id"))
		return
	}
	respond(w, http.StatusOK, media)
}

func (s *Server) handleMediaGet(w http.ResponseWriter, r *http.Request) {
	s.getMedia(w, r, true)
}

func (s *Server) handleMediaGetHead(w http.ResponseWriter, r *http.Request) {
	s.getMedia(w, r, false)
}

// mediaPatch carries the updatable media fields.
type mediaPatch struct {
	Filename *string        `json:"filename"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Server) handleMediaUpdate(w http.ResponseWriter, r *http.Request) {
	// Credentials come first, an anonymous caller learns nothing about
	// which media ids exist.
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
	media, err := s.core.GetMedia(storage.ByID(id), false)
	if err != nil {
		fail(w, err)
		return
	}
	if media == nil {
		fail(w, types.E(types.ErrNotFound, "no media asset with that id"))
		return
	}
	if err := auth.Require(p, auth.Rule{AllowRoot: true, Role: "admin_platform", ID: media.UserID}); err != nil {
		fail(w, err)
		return
	}

	var patch mediaPatch
	if err := decodeJSON(r, &patch); err != nil {
		fail(w, err)
		return
	}
	if patch.Filename != nil {
		media.Filename = *patch.Filename
	}
	for k, v := range patch.Metadata {
		media.AddMetadata(k, v, true)
	}

	saved, err := s.core.SaveMedia(media)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, saved)
}

func (s *Server) handleMediaDelete(w http.ResponseWriter, r *http.Request) {
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
	media, err := s.core.GetMedia(storage.ByID(id), false)
	if err != nil {
		fail(w, err)
		return
	}
	if media == nil {
		fail(w, types.E(types.ErrNotFound, "no media asset with that id"))
		return
	}
	if err := auth.Require(p, auth.Rule{AllowRoot: true, Role: "admin_platform", ID: media.UserID}); err != nil {
		fail(w, err)
		return
	}
	if err := s.core.DeleteMedia(id); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "media asset deleted")
}
