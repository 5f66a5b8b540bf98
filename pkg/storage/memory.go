package storage

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/oscied/orchestra/pkg/types"
)

// MemStore is an in-memory Store used when no database connection is
// configured, and by tests. It enforces the same unique constraints as the
// database-backed implementation.
type MemStore struct {
	mu             sync.RWMutex
	users          map[string]*types.User
	medias         map[string]*types.Media
	profiles       map[string]*types.TransformProfile
	transformTasks map[string]*types.TransformTask
	publisherTasks map[string]*types.PublisherTask
	environments   map[string]*types.Environment
}

// NewMemStore creates an empty in-memory store
func NewMemStore() *MemStore {
	s := &MemStore{}
	s.reset()
	return s
}

func (s *MemStore) reset() {
	s.users = make(map[string]*types.User)
	s.medias = make(map[string]*types.Media)
	s.profiles = make(map[string]*types.TransformProfile)
	s.transformTasks = make(map[string]*types.TransformTask)
	s.publisherTasks = make(map[string]*types.PublisherTask)
	s.environments = make(map[string]*types.Environment)
}

// clone deep-copies an entity so callers never alias stored state.
func clone[T any](v *T) *T {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c := *v
		return &c
	}
	out := new(T)
	if err := json.Unmarshal(raw, out); err != nil {
		c := *v
		return &c
	}
	return out
}

func values[T any](m map[string]*T) []*T {
	out := make([]*T, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

func cloneAll[T any](in []*T) []*T {
	out := make([]*T, 0, len(in))
	for _, v := range in {
		out = append(out, clone(v))
	}
	return out
}

// Users

func (s *MemStore) SaveUser(user *types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := clone(user)
	saved.Mail = types.NormalizeMail(saved.Mail)
	for id, u := range s.users {
		if id != saved.ID && strings.EqualFold(u.Mail, saved.Mail) {
			return types.E(types.ErrInvalid, "a user with that mail already exists")
		}
	}
	s.users[saved.ID] = saved
	return nil
}

func (s *MemStore) GetUser(spec Spec) (*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if matches(toDoc(u), spec) {
			return clone(u), nil
		}
	}
	return nil, nil
}

func (s *MemStore) ListUsers(q Query) ([]*types.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(applyQuery(values(s.users), q, func(u *types.User) map[string]any { return toDoc(u) })), nil
}

func (s *MemStore) DeleteUser(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *MemStore) CountUsers(spec Spec) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countMatching(values(s.users), spec, func(u *types.User) map[string]any { return toDoc(u) }), nil
}

// Medias

func (s *MemStore) SaveMedia(media *types.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, m := range s.medias {
		if id != media.ID && m.URI == media.URI {
			return types.E(types.ErrInvalid, "a media asset with that uri already exists")
		}
	}
	s.medias[media.ID] = clone(media)
	return nil
}

func (s *MemStore) GetMedia(spec Spec) (*types.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.medias {
		if matches(toDoc(m), spec) {
			return clone(m), nil
		}
	}
	return nil, nil
}

func (s *MemStore) ListMedias(q Query) ([]*types.Media, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(applyQuery(values(s.medias), q, func(m *types.Media) map[string]any { return toDoc(m) })), nil
}

func (s *MemStore) DeleteMedia(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.medias, id)
	return nil
}

func (s *MemStore) CountMedias(spec Spec) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countMatching(values(s.medias), spec, func(m *types.Media) map[string]any { return toDoc(m) }), nil
}

// Transformation profiles

func (s *MemStore) SaveProfile(profile *types.TransformProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.profiles {
		if id != profile.ID && p.Title == profile.Title {
			return types.E(types.ErrInvalid, "a transformation profile with that title already exists")
		}
	}
	s.profiles[profile.ID] = clone(profile)
	return nil
}

func (s *MemStore) GetProfile(spec Spec) (*types.TransformProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if matches(toDoc(p), spec) {
			return clone(p), nil
		}
	}
	return nil, nil
}

func (s *MemStore) ListProfiles(q Query) ([]*types.TransformProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(applyQuery(values(s.profiles), q, func(p *types.TransformProfile) map[string]any { return toDoc(p) })), nil
}

func (s *MemStore) DeleteProfile(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, id)
	return nil
}

func (s *MemStore) CountProfiles(spec Spec) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countMatching(values(s.profiles), spec, func(p *types.TransformProfile) map[string]any { return toDoc(p) }), nil
}

// Transformation tasks

func (s *MemStore) SaveTransformTask(task *types.TransformTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transformTasks[task.ID] = clone(task)
	return nil
}

func (s *MemStore) GetTransformTask(spec Spec) (*types.TransformTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.transformTasks {
		if matches(toDoc(t), spec) {
			return clone(t), nil
		}
	}
	return nil, nil
}

func (s *MemStore) ListTransformTasks(q Query) ([]*types.TransformTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(applyQuery(values(s.transformTasks), q, func(t *types.TransformTask) map[string]any { return toDoc(t) })), nil
}

func (s *MemStore) DeleteTransformTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.transformTasks, id)
	return nil
}

func (s *MemStore) CountTransformTasks(spec Spec) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countMatching(values(s.transformTasks), spec, func(t *types.TransformTask) map[string]any { return toDoc(t) }), nil
}

// Publication tasks

func (s *MemStore) SavePublisherTask(task *types.PublisherTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisherTasks[task.ID] = clone(task)
	return nil
}

func (s *MemStore) GetPublisherTask(spec Spec) (*types.PublisherTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.publisherTasks {
		if matches(toDoc(t), spec) {
			return clone(t), nil
		}
	}
	return nil, nil
}

func (s *MemStore) ListPublisherTasks(q Query) ([]*types.PublisherTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(applyQuery(values(s.publisherTasks), q, func(t *types.PublisherTask) map[string]any { return toDoc(t) })), nil
}

func (s *MemStore) DeletePublisherTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.publisherTasks, id)
	return nil
}

func (s *MemStore) CountPublisherTasks(spec Spec) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countMatching(values(s.publisherTasks), spec, func(t *types.PublisherTask) map[string]any { return toDoc(t) }), nil
}

// Environments

// envDoc stores the environment name under _id like the database does.
func envDoc(e *types.Environment) map[string]any {
	doc := toDoc(e)
	doc["_id"] = e.Name
	return doc
}

func (s *MemStore) SaveEnvironment(env *types.Environment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.environments[env.Name] = clone(env)
	return nil
}

func (s *MemStore) GetEnvironment(spec Spec) (*types.Environment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.environments {
		if matches(envDoc(e), spec) {
			return clone(e), nil
		}
	}
	return nil, nil
}

func (s *MemStore) ListEnvironments(q Query) ([]*types.Environment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(applyQuery(values(s.environments), q, envDoc)), nil
}

func (s *MemStore) DeleteEnvironment(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.environments, name)
	return nil
}

// Flush drops every collection
func (s *MemStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}

// Close releases the store
func (s *MemStore) Close() error {
	return nil
}
