// Package registry implements the thread registry of the server core:
// two catalogs of long-lived worker units, server units (listeners,
// directory scanners) and client units (one per accepted connection),
// each entry carrying a lifecycle state behind a per-unit lock and a join
// handle the supervisor uses to reap terminated workers.
//
// The unit shape is modeled on the teacher's component.ManagedComponent
// (component, state, context/cancel, last error); the two-catalog,
// ordered-bookkeeping pattern comes from service.Manager's map-of-services
// plus start/stop ordering, generalized from "named components" to
// "anonymous units keyed by an opaque id" since server units and client
// units come and go for the process lifetime rather than being declared
// once at startup.
package registry
