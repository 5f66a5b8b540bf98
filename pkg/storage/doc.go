/*
Package storage persists the orchestrator entities.

Store is the persistence interface: typed save, get, list, delete and count
operations per entity. Two implementations exist with identical semantics:

  - MongoStore, the production implementation on MongoDB
  - MemStore, an in-memory implementation for tests and mock mode

An empty database connection string at startup selects MemStore, so the
whole control plane runs without infrastructure.

# Queries

Reads filter with Spec, a map of dotted field paths to expected values:

	store.GetUser(storage.ByID(id))
	store.ListTransformTasks(storage.Query{
		Spec:  storage.Spec{"status": "PROGRESS", "statistic.hostname": h},
		Sort:  storage.SortTasksByDate,
		Skip:  20,
		Limit: 10,
	})

Ne wraps a value to match documents whose field differs. MemStore evaluates
specs against the entity's JSON document so both implementations see the
same field names.

# Semantics

Save upserts by id and enforces the unique constraints: users.mail,
medias.uri and transform_profiles.title. Violations return an invalid error
naming the field. Get returns (nil, nil) when nothing matches; List always
returns a non-nil slice. Environments are keyed by name instead of a
generated id.
*/
package storage
