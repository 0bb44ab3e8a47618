package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
ring:
  ring_dir: /var/lib/ringserver
  ring_size: 1073741824
  pkt_size: 512
identity:
  server_id: GE
  verbosity: 1
client:
  max_clients: 100
  max_clients_per_ip: 2
  client_timeout: 5m
  time_win_limit: 0.5
tls:
  tls_cert_file: /etc/ringserver/server.crt
  tls_key_file: /etc/ringserver/server.key
policy:
  match_ips:
    - cidr: 10.0.0.0/8
  reject_ips:
    - cidr: 10.0.0.5/32
  write_ips:
    - cidr: 127.0.0.1/32
endpoints:
  - port: "18000"
    protocols: ["datalink"]
    families: ["ipv4"]
    tls: false
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadParsesYAMLOverDefaults(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	cfg, err := NewLoader().Load(path)
	require.NoError(t, err)

	require.Equal(t, "/var/lib/ringserver", cfg.Ring.Dir)
	require.Equal(t, int64(1073741824), cfg.Ring.Size)
	require.Equal(t, "GE", cfg.Identity.ServerID)
	require.Equal(t, 100, cfg.Client.MaxClients)
	require.Equal(t, 5*time.Minute, cfg.Client.Timeout)
	require.Len(t, cfg.Endpoints, 1)
	require.Equal(t, "18000", cfg.Endpoints[0].Port)
	// Admin defaults survive even though the file never mentions admin.
	require.Equal(t, ":6381", cfg.Admin.Addr)
}

func TestLoadRejectsTLSEndpointWithoutCert(t *testing.T) {
	path := writeTempConfig(t, `
ring:
  ring_dir: /var/lib/ringserver
endpoints:
  - port: "18000"
    tls: true
`)
	_, err := NewLoader().Load(path)
	require.Error(t, err)
}

func TestEnvOverridesTakePrecedenceOverFile(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	t.Setenv("RS_SERVER_ID", "EE")
	t.Setenv("RS_MAX_CLIENTS", "250")

	cfg, err := NewLoader().Load(path)
	require.NoError(t, err)
	require.Equal(t, "EE", cfg.Identity.ServerID)
	require.Equal(t, 250, cfg.Client.MaxClients)
}

func TestApplyOverridesTakesPrecedenceOverEnvAndFile(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	t.Setenv("RS_SERVER_ID", "EE")

	cfg, err := NewLoader().Load(path)
	require.NoError(t, err)
	ApplyOverrides(cfg, Overrides{ServerID: "CLI-WINS"})
	require.Equal(t, "CLI-WINS", cfg.Identity.ServerID)
}

func TestRereadWithoutChangesYieldsIdenticalSnapshot(t *testing.T) {
	path := writeTempConfig(t, sampleYAML)
	loader := NewLoader()

	first, err := loader.Load(path)
	require.NoError(t, err)
	second, err := loader.Load(path)
	require.NoError(t, err)

	require.Equal(t, first.String(), second.String())
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("reread produced a structurally different snapshot (-first +second):\n%s", diff)
	}
}

func TestCloneIsIndependentOfSource(t *testing.T) {
	cfg := &Config{Policy: PolicyConfig{Match: []PolicyEntry{{CIDR: "10.0.0.0/8"}}}}
	clone := cfg.Clone()
	clone.Policy.Match[0].CIDR = "192.0.2.0/24"
	require.Equal(t, "10.0.0.0/8", cfg.Policy.Match[0].CIDR)
}

func TestPolicyConfigBuildCompilesEntries(t *testing.T) {
	p := PolicyConfig{
		Match: []PolicyEntry{{CIDR: "10.0.0.0/8"}},
		Limit: []PolicyEntry{{CIDR: "10.0.0.1/32", LimitPattern: "^GE\\."}},
	}
	policy, err := p.Build()
	require.NoError(t, err)
	require.Len(t, policy.Match, 1)
	require.Len(t, policy.Limit, 1)
}

func TestValidateRejectsNegativeClientCaps(t *testing.T) {
	cfg := &Config{Ring: RingConfig{Dir: "/tmp"}, Client: ClientConfig{MaxClients: -1}}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsTimeWinLimitOutOfRange(t *testing.T) {
	cfg := &Config{Ring: RingConfig{Dir: "/tmp"}, Client: ClientConfig{TimeWinLimit: 1.5}}
	require.Error(t, cfg.Validate())
}
