// Package api hosts the HTTP handlers behind the ReelVault REST surface.
//
// A Handler carries its collaborators as exported fields: the
// storage.Repository for persistence, the session manager for token
// validation, the credential resolver and access gate for tenant scoping,
// and the object-store and transcoder factories that turn resolved
// credentials into per-request clients. Callers construct a Handler with
// fully configured dependencies; the package keeps no globals beyond the
// process-wide metrics recorder.
//
// Handlers expect the middleware in internal/server to have resolved the
// session into a request-context user for everything under /api except the
// auth endpoints. The embed surface deliberately bypasses that chain and
// decides visibility on its own.
package api
