/*
Package api provides the REST control surface of the orchestrator.

Every response is wrapped in a uniform envelope whose status field mirrors
the HTTP status code:

	{"status": 200, "value": ...}

Errors carry their message in value. Infrastructure failures are masked as a
generic transmission problem so internals never leak to clients.

# Authentication

Requests authenticate with HTTP Basic credentials resolved to one of three
principals:

  - root: the platform operator, configured shared secret
  - node: worker machines delivering callbacks, configured shared secret
  - user: a registered account, mail and secret

Each route declares a rule whose predicates are tried left to right; the
first match grants access. Missing or wrong credentials answer 401, a valid
principal failing every predicate answers 403.

# Routes

	GET    /                                   about, anonymous
	POST   /flush                              root
	GET    /user/login                         any principal
	GET    /user/, POST /user/                 root or admin
	GET    /user/id/{id}                       root or any user
	PATCH  /user/id/{id}                       root, admin or self
	GET    /media/, POST /media/               root or any user
	GET    /environment/, POST /environment/   root or admin
	GET    /transform/profile/...              root or any user
	POST   /transform/unit/environment/{e}/    root or admin
	POST   /transform/task/                    root or any user
	POST   /transform/callback                 node
	POST   /publisher/task/                    root or any user
	POST   /publisher/callback                 node
	POST   /publisher/revoke/callback          node

The /HEAD list and get variants skip related-entity resolution for cheap
polling. List endpoints accept spec (JSON filter), skip, limit, sort (JSON
[[field, direction], ...] pairs, negative direction descending) and
load_fields parameters.

# Error mapping

	auth missing        401
	auth refused        403
	malformed id        415
	unsupported body    415
	not found           404
	invalid             400
	transient           400
	not implemented     501
	anything else       500

Prometheus request counters and latency histograms are recorded for every
request, and /metrics exposes them.
*/
package api
