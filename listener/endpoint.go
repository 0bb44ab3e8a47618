package listener

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/ringwire/streamserver/errors"
	"github.com/ringwire/streamserver/ippolicy"
	"github.com/ringwire/streamserver/pkg/security"
	"github.com/ringwire/streamserver/pkg/tlsutil"
)

// ProtocolSet is a bitmask of the wire protocols an endpoint accepts.
type ProtocolSet uint8

const (
	ProtoDataLink ProtocolSet = 1 << iota
	ProtoSeedLink
	ProtoHTTP
)

func (p ProtocolSet) String() string {
	var names []string
	if p&ProtoDataLink != 0 {
		names = append(names, "DataLink")
	}
	if p&ProtoSeedLink != 0 {
		names = append(names, "SeedLink")
	}
	if p&ProtoHTTP != 0 {
		names = append(names, "HTTP")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "+")
}

// Family is a bitmask of the address families an endpoint binds.
type Family uint8

const (
	FamilyIPv4 Family = 1 << iota
	FamilyIPv6
	FamilyUnix
)

// EndpointConfig is a listen endpoint's identity/attributes, minus the
// bound socket descriptor (which Endpoint owns once bound).
type EndpointConfig struct {
	Port            string // numeric TCP port, or a filesystem path for UNIX
	Protocols       ProtocolSet
	Family          Family
	TLS             bool
	TLSCertFile     string
	TLSKeyFile      string
	VerifyClient    bool
	TLSClientCAFile string // required when VerifyClient is set
}

// Validate enforces the invariant that if TLS is on, cert and key must both
// be named.
func (c EndpointConfig) Validate() error {
	if c.TLS && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "EndpointConfig", "Validate", "TLS enabled without cert/key files")
	}
	return nil
}

func (c EndpointConfig) tlsConfig() (*tls.Config, error) {
	if !c.TLS {
		return nil, nil
	}
	serverCfg := security.ServerTLSConfig{
		Enabled:  true,
		Mode:     "manual",
		CertFile: c.TLSCertFile,
		KeyFile:  c.TLSKeyFile,
	}
	mtlsCfg := security.ServerMTLSConfig{
		Enabled:           c.VerifyClient,
		RequireClientCert: c.VerifyClient,
	}
	if c.TLSClientCAFile != "" {
		mtlsCfg.ClientCAFiles = []string{c.TLSClientCAFile}
	}
	cfg, err := tlsutil.LoadServerTLSConfigWithMTLS(serverCfg, mtlsCfg)
	if err != nil {
		return nil, errors.WrapFatal(err, "EndpointConfig", "tlsConfig", "load TLS certificate")
	}
	return cfg, nil
}

// String reproduces the reference engine's GenProtocolString: a
// human-readable summary of an endpoint's protocols and options, used in
// startup log lines.
func (c EndpointConfig) String() string {
	s := fmt.Sprintf("%s [%s]", c.Port, c.Protocols)
	if c.TLS {
		s += " TLS"
		if c.VerifyClient {
			s += "+mTLS"
		}
	}
	return s
}

// AdmissionConfig bundles the policy inputs the acceptor consults before
// handing a connection to the registry.
type AdmissionConfig struct {
	Policy          ippolicy.Policy
	MaxClients      int // 0 = unlimited
	MaxClientsPerIP int // 0 = unlimited
}
