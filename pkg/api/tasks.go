package api

import (
	"net/http"

	"github.com/oscied/orchestra/pkg/auth"
	"github.com/oscied/orchestra/pkg/storage"
	"github.com/oscied/orchestra/pkg/types"
)

// Transformation tasks

func (s *Server) handleTransformQueues(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAny); !ok {
		return
	}
	respond(w, http.StatusOK, s.core.TransformQueues())
}

func (s *Server) handleTransformTaskCount(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAny); !ok {
		return
	}
	spec, err := specParam(r)
	if err != nil {
		fail(w, err)
		return
	}
	n, err := s.core.CountTransformTasks(spec)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, n)
}

func (s *Server) listTransformTasks(w http.ResponseWriter, r *http.Request, loadFields bool) {
	if _, ok := s.require(w, r, ruleRootOrAny); !ok {
		return
	}
	q, load, err := parseQuery(r)
	if err != nil {
		fail(w, err)
		return
	}
	tasks, err := s.core.ListTransformTasks(q, loadFields && load)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, tasks)
}

func (s *Server) handleTransformTaskList(w http.ResponseWriter, r *http.Request) {
	s.listTransformTasks(w, r, true)
}

func (s *Server) handleTransformTaskHead(w http.ResponseWriter, r *http.Request) {
	s.listTransformTasks(w, r, false)
}

// launchTransformBody is the launch request payload.
type launchTransformBody struct {
	UserID    string         `json:"user_id"`
	MediaInID string         `json:"media_in_id"`
	ProfileID string         `json:"profile_id"`
	Filename  string         `json:"filename"`
	Metadata  map[string]any `json:"metadata"`
	SendEmail bool           `json:"send_email"`
	Queue     string         `json:"queue"`
}

func (s *Server) handleTransformTaskLaunch(w http.ResponseWriter, r *http.Request) {
	p, ok := s.require(w, r, ruleRootOrAny)
	if !ok {
		return
	}
	var body launchTransformBody
	if err := decodeJSON(r, &body); err != nil {
		fail(w, err)
		return
	}
	// Tasks belong to their requester; only root may launch on behalf.
	userID := p.User.ID
	if p.IsRoot() && body.UserID != "" {
		userID = body.UserID
	}
	task, err := s.core.LaunchTransformTask(userID, body.MediaInID, body.ProfileID,
		body.Filename, body.Metadata, body.SendEmail, body.Queue,
		s.cfg.APIURL+"/transform/callback")
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, task)
}

func (s *Server) getTransformTask(w http.ResponseWriter, r *http.Request, loadFields bool) {
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
	task, err := s.core.GetTransformTask(storage.ByID(id), loadFields && load)
	if err != nil {
		fail(w, err)
		return
	}
	if task == nil {
		fail(w, types.E(types.ErrNotFound, "no transformation task with that id"))
		return
	}
	respond(w, http.StatusOK, task)
}

func (s *Server) handleTransformTaskGet(w http.ResponseWriter, r *http.Request) {
	s.getTransformTask(w, r, true)
}

func (s *Server) handleTransformTaskGetHead(w http.ResponseWriter, r *http.Request) {
	s.getTransformTask(w, r, false)
}

func (s *Server) handleTransformTaskRevoke(w http.ResponseWriter, r *http.Request) {
	// Credentials come first, an anonymous caller learns nothing about
	// which task ids exist.
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
	task, err := s.core.GetTransformTask(storage.ByID(id), false)
	if err != nil {
		fail(w, err)
		return
	}
	if task == nil {
		fail(w, types.E(types.ErrNotFound, "no transformation task with that id"))
		return
	}
	if err := auth.Require(p, auth.Rule{AllowRoot: true, Role: "admin_platform", ID: task.UserID}); err != nil {
		fail(w, err)
		return
	}
	if err := s.core.RevokeTransformTask(id, true, false, true); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "transformation task revoked")
}

// Publication tasks

func (s *Server) handlePublisherQueues(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAny); !ok {
		return
	}
	respond(w, http.StatusOK, s.core.PublisherQueues())
}

func (s *Server) handlePublisherTaskCount(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleRootOrAny); !ok {
		return
	}
	spec, err := specParam(r)
	if err != nil {
		fail(w, err)
		return
	}
	n, err := s.core.CountPublisherTasks(spec)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, n)
}

func (s *Server) listPublisherTasks(w http.ResponseWriter, r *http.Request, loadFields bool) {
	if _, ok := s.require(w, r, ruleRootOrAny); !ok {
		return
	}
	q, load, err := parseQuery(r)
	if err != nil {
		fail(w, err)
		return
	}
	tasks, err := s.core.ListPublisherTasks(q, loadFields && load)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, tasks)
}

func (s *Server) handlePublisherTaskList(w http.ResponseWriter, r *http.Request) {
	s.listPublisherTasks(w, r, true)
}

func (s *Server) handlePublisherTaskHead(w http.ResponseWriter, r *http.Request) {
	s.listPublisherTasks(w, r, false)
}

// launchPublisherBody is the launch request payload.
type launchPublisherBody struct {
	UserID    string `json:"user_id"`
	MediaID   string `json:"media_id"`
	SendEmail bool   `json:"send_email"`
	Queue     string `json:"queue"`
}

func (s *Server) handlePublisherTaskLaunch(w http.ResponseWriter, r *http.Request) {
	p, ok := s.require(w, r, ruleRootOrAny)
	if !ok {
		return
	}
	var body launchPublisherBody
	if err := decodeJSON(r, &body); err != nil {
		fail(w, err)
		return
	}
	userID := p.User.ID
	if p.IsRoot() && body.UserID != "" {
		userID = body.UserID
	}
	task, err := s.core.LaunchPublisherTask(userID, body.MediaID, body.SendEmail,
		body.Queue, s.cfg.APIURL+"/publisher/callback")
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, task)
}

func (s *Server) getPublisherTask(w http.ResponseWriter, r *http.Request, loadFields bool) {
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
	task, err := s.core.GetPublisherTask(storage.ByID(id), loadFields && load)
	if err != nil {
		fail(w, err)
		return
	}
	if task == nil {
		fail(w, types.E(types.ErrNotFound, "no publication task with that id"))
		return
	}
	respond(w, http.StatusOK, task)
}

func (s *Server) handlePublisherTaskGet(w http.ResponseWriter, r *http.Request) {
	s.getPublisherTask(w, r, true)
}

func (s *Server) handlePublisherTaskGetHead(w http.ResponseWriter, r *http.Request) {
	s.getPublisherTask(w, r, false)
}

func (s *Server) handlePublisherTaskRevoke(w http.ResponseWriter, r *http.Request) {
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
	task, err := s.core.GetPublisherTask(storage.ByID(id), false)
	if err != nil {
		fail(w, err)
		return
	}
	if task == nil {
		fail(w, types.E(types.ErrNotFound, "no publication task with that id"))
		return
	}
	if err := auth.Require(p, auth.Rule{AllowRoot: true, Role: "admin_platform", ID: task.UserID}); err != nil {
		fail(w, err)
		return
	}
	err = s.core.RevokePublisherTask(id, s.cfg.APIURL+"/publisher/revoke/callback", true, false)
	if err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "publication task revoked")
}
