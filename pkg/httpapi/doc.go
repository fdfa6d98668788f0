/*
Package api wires the relay's external HTTP interface (spec.md §6) onto a
chi router:

	POST /inbox                          -> pkg/inbox.Handler (mounted in)
	GET  /actor                          -> this relay's own actor document
	GET  /media/:uuid                    -> redirect to the proxied remote URL
	GET  /nodeinfo/2.0                   -> this relay's own NodeInfo
	GET  /.well-known/nodeinfo           -> discovery pointer
	GET  /.well-known/webfinger          -> acct:relay@host lookup
	GET  /healthz                        -> health.Registry
	GET  /                               -> operator-facing HTML index
	POST /api/v1/admin/{blocks,allows,listeners} -> bearer-token mutations

Server owns no relay state; every handler reads and writes through the
*repo.Repo and *jobs.Engine handed to it at construction. requireBearerToken
gates the whole /api/v1/admin subtree with a constant-time comparison
against API_TOKEN.
*/
package api
