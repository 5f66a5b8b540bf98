/*
Package types defines the orchestrator entities and the error taxonomy.

# Entities

  - User: an account identified by its unique mail. Secrets are stored
    hashed and stripped by Sanitized before anything leaves the server.
  - Media: an asset on the shared storage, unique by URI, moving through
    PENDING, READY and DELETED. Transformation outputs reference their
    input through parent_id; public_uris maps publication task ids to the
    URLs serving the asset.
  - TransformProfile: a named encoder configuration (copy, ffmpeg or
    dashcast), unique by title.
  - TransformTask and PublisherTask: work dispatched to the queues, with
    explicit state machines. Terminal states never transition again, which
    is what makes duplicate callbacks safe to acknowledge.
  - Environment: a cluster the orchestrator scales, keyed by name.

# Errors

Error carries a Kind classifying the failure; the REST layer maps kinds to
HTTP statuses. Helpers E, Wrap and KindOf build and inspect them, and
KindOf sees through wrapping so a transient error stays transient across
layers.
*/
package types
