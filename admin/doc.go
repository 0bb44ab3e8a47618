// Package admin is the operator-facing HTTP surface: JSON status, Prometheus
// metrics, pprof profiling, and a guarded config-reload endpoint. It is
// entirely separate from the data-plane listeners in package listener —
// this is the control plane, never reached by streaming clients.
//
// Grounded on the teacher's service/component_manager_http.go (stdlib
// http.ServeMux registration idiom, JSON responses written by hand rather
// than through a router) and gateway/http/http.go and metric/handler.go
// (promhttp.Handler wiring, TLS-optional http.Server lifecycle).
package admin
