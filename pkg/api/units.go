package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/oscied/orchestra/pkg/types"
)

// Unit handlers are shared between the transform and publisher families,
// closed over the service name at route registration.

func (s *Server) serviceUnitEnsure(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.require(w, r, ruleRootOrAdmin); !ok {
			return
		}
		var body struct {
			NumUnits int `json:"num_units"`
		}
		if err := decodeJSON(r, &body); err != nil {
			fail(w, err)
			return
		}
		environment := chi.URLParam(r, "environment")
		if err := s.core.EnsureNumUnits(environment, service, body.NumUnits); err != nil {
			fail(w, err)
			return
		}
		respond(w, http.StatusOK, "service scaled")
	}
}

// serviceUnitScaleDown removes every unit of the service.
func (s *Server) serviceUnitScaleDown(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.require(w, r, ruleRootOrAdmin); !ok {
			return
		}
		environment := chi.URLParam(r, "environment")
		if err := s.core.EnsureNumUnits(environment, service, 0); err != nil {
			fail(w, err)
			return
		}
		respond(w, http.StatusOK, "units removed")
	}
}

func (s *Server) serviceUnitList(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.require(w, r, ruleRootOrAny); !ok {
			return
		}
		environment := chi.URLParam(r, "environment")
		units, err := s.core.ListUnits(environment, service)
		if err != nil {
			fail(w, err)
			return
		}
		list := make([]*types.Unit, 0, len(units))
		for _, u := range units {
			list = append(list, u)
		}
		respond(w, http.StatusOK, list)
	}
}

func (s *Server) serviceUnitCount(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.require(w, r, ruleRootOrAny); !ok {
			return
		}
		environment := chi.URLParam(r, "environment")
		units, err := s.core.ListUnits(environment, service)
		if err != nil {
			fail(w, err)
			return
		}
		respond(w, http.StatusOK, len(units))
	}
}

func (s *Server) serviceUnitGet(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.require(w, r, ruleRootOrAny); !ok {
			return
		}
		environment := chi.URLParam(r, "environment")
		number, err := strconv.Atoi(chi.URLParam(r, "number"))
		if err != nil || number < 0 {
			fail(w, types.E(types.ErrInvalid, "unit number must be a non-negative integer"))
			return
		}
		unit, err := s.core.GetUnit(environment, service, number)
		if err != nil {
			fail(w, err)
			return
		}
		respond(w, http.StatusOK, unit)
	}
}

func (s *Server) serviceUnitDestroy(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.require(w, r, ruleRootOrAdmin); !ok {
			return
		}
		environment := chi.URLParam(r, "environment")
		number, err := strconv.Atoi(chi.URLParam(r, "number"))
		if err != nil || number < 0 {
			fail(w, types.E(types.ErrInvalid, "unit number must be a non-negative integer"))
			return
		}
		if err := s.core.DestroyUnit(environment, service, number); err != nil {
			fail(w, err)
			return
		}
		respond(w, http.StatusOK, "unit destroyed")
	}
}
