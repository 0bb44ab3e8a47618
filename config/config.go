// Package config holds the ring server's configuration snapshot: everything
// the core reads (ring parameters, server identity, client caps, TLS, IP
// policy lists, transfer-log controls, listener endpoints, directory
// scanners), loaded from a YAML file with CLI-flag and environment-variable
// overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ringwire/streamserver/errors"
	"github.com/ringwire/streamserver/ippolicy"
	"github.com/ringwire/streamserver/pkg/security"
)

// AutoRecovery is the auto-recovery mode applied when the ring engine's
// init call reports a corrupt or old-format buffer.
type AutoRecovery int

const (
	AutoRecoveryOff AutoRecovery = iota
	AutoRecoveryMove
	AutoRecoveryDelete
)

// RingConfig is the ring engine's config-facing fields.
type RingConfig struct {
	Dir          string       `yaml:"ring_dir"`
	Size         int64        `yaml:"ring_size"`
	PacketSize   int          `yaml:"pkt_size"`
	MemoryMap    bool         `yaml:"memory_map_ring"`
	Volatile     bool         `yaml:"volatile_ring"`
	AutoRecovery AutoRecovery `yaml:"auto_recovery"`
}

// Capacity returns the ring's capacity in records, the unit ring.New takes.
func (r RingConfig) Capacity() int {
	if r.PacketSize <= 0 {
		return int(r.Size)
	}
	n := r.Size / int64(r.PacketSize)
	if n <= 0 {
		return 1
	}
	return int(n)
}

// IdentityConfig is the server's self-reported identity: serverId,
// verbosity, resolveHosts.
type IdentityConfig struct {
	ServerID     string `yaml:"server_id"`
	Verbosity    int    `yaml:"verbosity"`
	ResolveHosts bool   `yaml:"resolve_hosts"`
}

// ClientConfig bounds concurrent clients.
type ClientConfig struct {
	MaxClients      int           `yaml:"max_clients"` // 0 = unlimited
	MaxClientsPerIP int           `yaml:"max_clients_per_ip"`
	Timeout         time.Duration `yaml:"client_timeout"`
	TimeWinLimit    float64       `yaml:"time_win_limit"` // in [0,1]
}

// WebConfig is the HTTP endpoint's static-file root and extra headers.
type WebConfig struct {
	Root        string            `yaml:"web_root"`
	HTTPHeaders map[string]string `yaml:"http_headers"`
}

// MseedArchiveConfig controls the optional miniSEED archive writer attached
// to a client connection.
type MseedArchiveConfig struct {
	Path        string        `yaml:"mseed_archive"`
	IdleTimeout time.Duration `yaml:"mseed_idle_timeout"`
}

// TLSConfig is the data-plane listeners' TLS material. This is distinct
// from pkg/security.ServerTLSConfig (used by the admin HTTP surface, which
// can also provision a cert via ACME); data-plane listeners always require
// operator-provided files, so this stays a plain cert/key/verify triple
// with no ACME mode.
type TLSConfig struct {
	CertFile         string `yaml:"tls_cert_file"`
	KeyFile          string `yaml:"tls_key_file"`
	VerifyClientCert bool   `yaml:"tls_verify_client_cert"`
	ClientCAFile     string `yaml:"tls_client_ca_file"`
}

// PolicyConfig is the five ordered CIDR lists, each entry carrying an
// optional stream-ID regex.
type PolicyConfig struct {
	Match   []PolicyEntry `yaml:"match_ips"`
	Reject  []PolicyEntry `yaml:"reject_ips"`
	Write   []PolicyEntry `yaml:"write_ips"`
	Trusted []PolicyEntry `yaml:"trusted_ips"`
	Limit   []PolicyEntry `yaml:"limit_ips"`
}

// PolicyEntry is one CIDR plus its optional stream-ID limit pattern.
type PolicyEntry struct {
	CIDR         string `yaml:"cidr"`
	LimitPattern string `yaml:"limit_pattern,omitempty"`
}

// Build compiles a PolicyConfig into the ippolicy.Policy the listener's
// admission path consumes.
func (p PolicyConfig) Build() (ippolicy.Policy, error) {
	build := func(entries []PolicyEntry) (ippolicy.List, error) {
		list := make(ippolicy.List, 0, len(entries))
		for _, e := range entries {
			entry, err := ippolicy.NewEntry(e.CIDR, e.LimitPattern)
			if err != nil {
				return nil, err
			}
			list = append(list, entry)
		}
		return list, nil
	}

	var policy ippolicy.Policy
	var err error
	if policy.Match, err = build(p.Match); err != nil {
		return ippolicy.Policy{}, err
	}
	if policy.Reject, err = build(p.Reject); err != nil {
		return ippolicy.Policy{}, err
	}
	if policy.Write, err = build(p.Write); err != nil {
		return ippolicy.Policy{}, err
	}
	if policy.Trusted, err = build(p.Trusted); err != nil {
		return ippolicy.Policy{}, err
	}
	if policy.Limit, err = build(p.Limit); err != nil {
		return ippolicy.Policy{}, err
	}
	return policy, nil
}

// TransferLogConfig is the TransferLogWindow's static controls.
type TransferLogConfig struct {
	BaseDir       string `yaml:"base_dir"`
	Prefix        string `yaml:"prefix"`
	IntervalHours int    `yaml:"interval_hours"`
	EnableTX      bool   `yaml:"enable_tx"`
	EnableRX      bool   `yaml:"enable_rx"`
}

// EndpointConfig is one listener endpoint: port/path, protocol set,
// address family, and its own TLS toggle.
type EndpointConfig struct {
	Port      string   `yaml:"port"`
	Protocols []string `yaml:"protocols"` // "datalink", "seedlink", "http"
	Families  []string `yaml:"families"`  // "ipv4", "ipv6", "unix"
	TLS       bool     `yaml:"tls"`
}

// ScannerConfig is one directory-scanner description.
type ScannerConfig struct {
	Path             string `yaml:"path"`
	StateFile        string `yaml:"state_file"`
	Match            string `yaml:"match"`
	Reject           string `yaml:"reject"`
	InitCurrentState bool   `yaml:"init_current_state"`
}

// AdminConfig controls the admin HTTP surface (see package admin). Unlike
// the data-plane TLSConfig above, it reuses pkg/security's ACME-capable
// ServerTLSConfig since it is not subject to the data plane's
// operator-cert-only invariant.
type AdminConfig struct {
	Addr        string                   `yaml:"addr"`
	MetricsPath string                   `yaml:"metrics_path"`
	EnablePprof bool                     `yaml:"enable_pprof"`
	TLS         security.ServerTLSConfig `yaml:"tls"`
}

// ScannerEgressConfig is the NATS connection the directory-scanner unit's
// discovered-file notifications publish to. A blank URL leaves scanning
// purely local: state-file bookkeeping still runs, publish becomes a
// no-op.
type ScannerEgressConfig struct {
	URL string `yaml:"url"`
}

// Config is the full configuration snapshot: everything the core reads.
type Config struct {
	Ring        RingConfig          `yaml:"ring"`
	Identity    IdentityConfig      `yaml:"identity"`
	Client      ClientConfig        `yaml:"client"`
	Web         WebConfig           `yaml:"web"`
	Mseed       MseedArchiveConfig  `yaml:"mseed"`
	TLS         TLSConfig           `yaml:"tls"`
	Policy      PolicyConfig        `yaml:"policy"`
	TransferLog TransferLogConfig   `yaml:"transfer_log"`
	Endpoints   []EndpointConfig    `yaml:"endpoints"`
	Scanners    []ScannerConfig     `yaml:"scanners"`
	ScannerNATS ScannerEgressConfig `yaml:"scanner_nats"`
	Admin       AdminConfig         `yaml:"admin"`
}

// Clone returns a deep copy of c, used by Store so a caller holding a
// snapshot is unaffected by a subsequent reload swap.
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}
	clone := *c

	clone.Web.HTTPHeaders = make(map[string]string, len(c.Web.HTTPHeaders))
	for k, v := range c.Web.HTTPHeaders {
		clone.Web.HTTPHeaders[k] = v
	}

	clone.Policy.Match = append([]PolicyEntry(nil), c.Policy.Match...)
	clone.Policy.Reject = append([]PolicyEntry(nil), c.Policy.Reject...)
	clone.Policy.Write = append([]PolicyEntry(nil), c.Policy.Write...)
	clone.Policy.Trusted = append([]PolicyEntry(nil), c.Policy.Trusted...)
	clone.Policy.Limit = append([]PolicyEntry(nil), c.Policy.Limit...)

	clone.Endpoints = append([]EndpointConfig(nil), c.Endpoints...)
	clone.Scanners = append([]ScannerConfig(nil), c.Scanners...)

	return &clone
}

// Validate enforces the configuration-fatal invariants: TLS requires
// cert+key (both the data plane and per-endpoint toggles), mTLS requires a
// CA file, client caps are non-negative, and timeWinLimit stays in [0,1].
func (c *Config) Validate() error {
	if c.TLS.CertFile != "" || c.TLS.KeyFile != "" {
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", "tls_cert_file and tls_key_file must both be set")
		}
	}
	for i, ep := range c.Endpoints {
		if ep.TLS && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate",
				fmt.Sprintf("endpoints[%d]: TLS enabled without tls_cert_file/tls_key_file", i))
		}
		if strings.TrimSpace(ep.Port) == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", fmt.Sprintf("endpoints[%d]: port is required", i))
		}
	}
	if c.TLS.VerifyClientCert && c.TLS.ClientCAFile == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", "tls_verify_client_cert requires tls_client_ca_file")
	}
	if c.Client.MaxClients < 0 || c.Client.MaxClientsPerIP < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", "client caps must be non-negative")
	}
	if c.Client.TimeWinLimit < 0 || c.Client.TimeWinLimit > 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", "time_win_limit must be in [0,1]")
	}
	if c.Ring.Dir == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "Validate", "ring_dir is required")
	}
	return nil
}

// String renders the snapshot back to YAML, used by callers that want to
// compare two snapshots for equality — rereading an unchanged config file
// should yield a byte-identical snapshot — without reaching into package
// internals.
func (c *Config) String() string {
	data, err := marshalYAML(c)
	if err != nil {
		return fmt.Sprintf("<config marshal error: %v>", err)
	}
	return string(data)
}

// safeReadFile reads a config file, refusing anything that isn't a regular
// file (symlinks, devices, directories) before handing bytes to the YAML
// decoder.
func safeReadFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "config", "safeReadFile", "stat config file")
	}
	if !info.Mode().IsRegular() {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "config", "safeReadFile", "config path is not a regular file")
	}
	return os.ReadFile(path)
}
