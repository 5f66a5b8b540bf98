package api

import (
	"net/http"

	"github.com/oscied/orchestra/pkg/types"
)

// Workers authenticate as the node principal and report through these
// endpoints. Reports on already-finished tasks are acknowledged so workers
// never retry forever.

type transformCallbackBody struct {
	TaskID  string         `json:"task_id"`
	Status  string         `json:"status"`
	Details map[string]any `json:"details"`
}

func (s *Server) handleTransformCallback(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleNode); !ok {
		return
	}
	var body transformCallbackBody
	if err := decodeJSON(r, &body); err != nil {
		fail(w, err)
		return
	}
	if body.TaskID == "" || body.Status == "" {
		fail(w, types.E(types.ErrInvalid, "task_id and status are required"))
		return
	}
	if err := s.core.TransformCallback(body.TaskID, body.Status, body.Details); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "callback handled")
}

type publisherCallbackBody struct {
	TaskID     string `json:"task_id"`
	PublishURI string `json:"publish_uri"`
	Status     string `json:"status"`
}

func (s *Server) handlePublisherCallback(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleNode); !ok {
		return
	}
	var body publisherCallbackBody
	if err := decodeJSON(r, &body); err != nil {
		fail(w, err)
		return
	}
	if body.TaskID == "" || body.Status == "" {
		fail(w, types.E(types.ErrInvalid, "task_id and status are required"))
		return
	}
	if err := s.core.PublisherCallback(body.TaskID, body.PublishURI, body.Status); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "callback handled")
}

type publisherRevokeCallbackBody struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

func (s *Server) handlePublisherRevokeCallback(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.require(w, r, ruleNode); !ok {
		return
	}
	var body publisherRevokeCallbackBody
	if err := decodeJSON(r, &body); err != nil {
		fail(w, err)
		return
	}
	if body.TaskID == "" || body.Status == "" {
		fail(w, types.E(types.ErrInvalid, "task_id and status are required"))
		return
	}
	if err := s.core.PublisherRevokeCallback(body.TaskID, body.Status); err != nil {
		fail(w, err)
		return
	}
	respond(w, http.StatusOK, "callback handled")
}
