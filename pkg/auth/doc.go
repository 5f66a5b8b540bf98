/*
Package auth resolves HTTP Basic credentials to principals and evaluates
access rules.

Three principal kinds exist. The root and node principals authenticate with
configured shared secrets under the reserved usernames "root" and "node";
they carry a synthetic user record with the zero uuid. Users authenticate
with their mail and secret, verified against the stored bcrypt hash.

Every authentication failure answers the same way, a missing-authentication
error, so credentials cannot be probed for which part was wrong.

A Rule lists the predicates a route accepts:

	auth.Rule{AllowRoot: true, Role: "admin_platform", ID: task.UserID}

Predicates are evaluated left to right and the first match grants access.
AllowAny covers any authenticated user but not root or node; routes open to
both say so explicitly.
*/
package auth
