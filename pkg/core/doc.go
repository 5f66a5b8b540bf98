/*
Package core implements the orchestrator operations shared by the REST layer
and the background control loops.

The core ties the persistent store, the job broker, the shared blob store and
the per-environment cluster adapters together. Handlers and loops never talk
to those collaborators directly; they call core operations, which enforce the
cross-entity rules (reference checks, task state machines, media lifecycle)
in one place.

# Architecture

	┌───────────────────────────────────────────────────────────┐
	│                         Core                              │
	│                                                           │
	│  users      medias      profiles     environments         │
	│  transform tasks        publisher tasks      callbacks    │
	└──────┬──────────┬───────────┬──────────────┬──────────────┘
	       │          │           │              │
	       ▼          ▼           ▼              ▼
	  storage.Store  broker.JobQueue  blobstore.BlobStore  cluster.Registry

# Task launching

Launching a transformation follows a strict order so failures leave no
half-created state behind:

 1. Resolve and validate the user, the input media, the profile and the
    queue name.
 2. Create the pending output media with its canonical storage URI and
    persist it. A duplicate output location fails here, before anything
    reaches the broker.
 3. Submit the job. On failure the placeholder media is removed and the
    caller gets a transient error.
 4. Persist the task under the broker-assigned id with its add_date
    statistic.

Publications follow the same shape without an output media: the input must
be READY, unpublished and free of other live publication tasks.

# Callbacks

Workers report through node-authenticated callbacks. Callback processing is
serialized per task id by a striped lock, and reports on tasks already in a
terminal state are acknowledged without effect, so duplicate and out-of-order
deliveries are harmless. A transformation SUCCESS marks the output media
READY and probes it; any other final status is treated as the worker's error
message, recorded in the task statistic, and the half-written output is
discarded.

Revoking a successful publication is asynchronous: an unpublish job is
routed to the worker that served the copy (derived from the publish URI) and
the task waits in REVOKING until the revoke callback confirms.

# Notifications and events

Tasks launched with send_email set notify their owner by mail when they
reach a terminal state. Mailing happens on a separate goroutine so a slow
SMTP server never delays a callback. Every state change also publishes an
event on the broker for subscribers such as the request log.
*/
package core
