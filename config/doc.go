// Package config loads and validates the ring server's configuration
// snapshot: ring parameters, server identity, client caps, TLS settings,
// IP admission policy lists, transfer-log controls, listener endpoints,
// and directory-scanner descriptions.
//
// # Loading
//
// Loader reads a YAML file over a set of built-in defaults, then layers
// RS_-prefixed environment variables on top; cmd/ringserverd applies a
// final layer of command-line flags via ApplyOverrides, giving the
// required precedence: command-line > environment > file.
//
//	loader := config.NewLoader()
//	cfg, err := loader.Load("/etc/ringserverd/config.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	config.ApplyOverrides(cfg, overridesFromFlags)
//
// # Reload
//
// Store wraps a Config behind an RWMutex, validating before swap and
// keeping the previous snapshot on error. NewFileStore additionally polls
// the source file's mtime; its Reload method matches
// supervisor.Supervisor.ConfigReload's signature and is intended to be
// assigned there directly.
package config
