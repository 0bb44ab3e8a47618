// Package streamserver is a packet ring-buffer streaming server: clients
// connect over TCP, UNIX sockets, or HTTP, are admitted according to a
// configurable IP policy, and read forward through a bounded in-memory
// ring of fixed-size packets written by producers on the write list.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│            Supervisor               │  tick loop: reap, respawn,
//	│   (ring, registry, listeners)       │  aggregate rates, roll logs
//	└───────────────┬─────────────────────┘
//	                │ owns
//	   ┌────────────┼─────────────────┐
//	   ▼            ▼                 ▼
//	┌──────┐   ┌──────────┐    ┌─────────────┐
//	│ ring │   │ registry │    │  listener   │  admission, TLS, protocol
//	│      │   │ (units)  │    │ (endpoints) │  handoff
//	└──────┘   └──────────┘    └─────────────┘
//
// Configuration (package config) is a YAML file layered with RS_-prefixed
// environment variables and command-line overrides, held behind an
// mtime-polled Store the supervisor rereads once per tick. The admin
// package exposes a read-only HTTP status/metrics surface and a reload
// endpoint that checks its body against a JSON schema; signaldispatch owns the process's signal handling and
// turns SIGINT/SIGTERM/SIGUSR1 into actions the supervisor and admin
// server both observe.
//
// A directory-scanner unit (registry.ScanJob) walks a watched path on its
// own scan interval, separate from the supervisor tick, and publishes discovered files to NATS, reusing the
// same catalog and lifecycle machinery as a listener endpoint.
//
// # Entry point
//
// cmd/ringserverd wires these packages together into a single process:
// parse flags, load and validate configuration, build the ring and
// registry, register listener endpoints and directory scanners, start the
// admin server, then hand control to the supervisor's tick loop until a
// shutdown signal drains it.
package streamserver
