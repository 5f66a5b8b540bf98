package storage

import (
	"github.com/oscied/orchestra/pkg/types"
)

// Spec is a query filter. Values match by equality; a nested
// map[string]any{"$ne": v} excludes documents where the field equals v.
// Field names use dotted paths into the stored document.
type Spec map[string]any

// SortKey orders results by a dotted field path.
type SortKey struct {
	Field string
	Desc  bool
}

// Query bundles filter, pagination and ordering for list operations.
// Skip and Limit of zero mean "from the start" and "no limit".
type Query struct {
	Spec  Spec
	Skip  int
	Limit int
	Sort  []SortKey
}

// Store defines the interface for orchestrator state storage.
// Get methods return (nil, nil) when no document matches. List methods
// always return a non-nil slice. Save is an upsert keyed by the entity id
// and enforces the unique constraints (users.mail, medias.uri,
// transform_profiles.title). Mail uniqueness is case-insensitive: SaveUser
// normalizes the address to lower case before storing it.
type Store interface {
	// Users
	SaveUser(user *types.User) error
	GetUser(spec Spec) (*types.User, error)
	ListUsers(q Query) ([]*types.User, error)
	DeleteUser(id string) error
	CountUsers(spec Spec) (int64, error)

	// Medias
	SaveMedia(media *types.Media) error
	GetMedia(spec Spec) (*types.Media, error)
	ListMedias(q Query) ([]*types.Media, error)
	DeleteMedia(id string) error
	CountMedias(spec Spec) (int64, error)

	// Transformation profiles
	SaveProfile(profile *types.TransformProfile) error
	GetProfile(spec Spec) (*types.TransformProfile, error)
	ListProfiles(q Query) ([]*types.TransformProfile, error)
	DeleteProfile(id string) error
	CountProfiles(spec Spec) (int64, error)

	// Transformation tasks
	SaveTransformTask(task *types.TransformTask) error
	GetTransformTask(spec Spec) (*types.TransformTask, error)
	ListTransformTasks(q Query) ([]*types.TransformTask, error)
	DeleteTransformTask(id string) error
	CountTransformTasks(spec Spec) (int64, error)

	// Publication tasks
	SavePublisherTask(task *types.PublisherTask) error
	GetPublisherTask(spec Spec) (*types.PublisherTask, error)
	ListPublisherTasks(q Query) ([]*types.PublisherTask, error)
	DeletePublisherTask(id string) error
	CountPublisherTasks(spec Spec) (int64, error)

	// Environments
	SaveEnvironment(env *types.Environment) error
	GetEnvironment(spec Spec) (*types.Environment, error)
	ListEnvironments(q Query) ([]*types.Environment, error)
	DeleteEnvironment(name string) error

	// Utility
	Flush() error
	Close() error
}

// ByID builds a filter matching a single document by identifier.
func ByID(id string) Spec {
	return Spec{"_id": id}
}

// Ne builds a $ne clause for use as a Spec value.
func Ne(v any) map[string]any {
	return map[string]any{"$ne": v}
}

// Default orderings applied by callers that list without an explicit sort.
var (
	SortMediasByTitle = []SortKey{{Field: "metadata.title"}}
	SortUsersByName   = []SortKey{{Field: "last_name"}, {Field: "first_name"}}
	SortTasksByDate   = []SortKey{{Field: "statistic.add_date", Desc: true}}
)
