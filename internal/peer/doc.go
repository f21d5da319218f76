// Package peer carries the delegated write channel over HTTP.
//
// Every peer runs a Server. Writes arrive on the coordinator at
// POST /v1/queries/set-attachment and are queued into its delegate.Loop;
// reads are served by any peer from its local store.
//
// Routes:
//
//	POST /v1/queries/set-attachment                           delegate.Request -> delegate.Result
//	GET  /v1/documents/{ref}/attachments/{namespace}/{key}    raw attachment value (null if unset)
//	PUT  /v1/documents/{ref}                                  {"kind": "message"|"readonly"}
//	GET  /v1/coordinator                                      {"coordinator": "...", "self": "..."}
//
// Callers identify themselves with the X-Savetray-Peer header. It is used
// for logging only; authorization is the coordinator check in
// delegate.Handler.
package peer
