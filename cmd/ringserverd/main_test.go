package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ringwire/streamserver/config"
	"github.com/ringwire/streamserver/listener"
	"github.com/ringwire/streamserver/protocol/lineproto"
	"github.com/ringwire/streamserver/protocol/wsrelay"
	"github.com/ringwire/streamserver/ring"
)

func newTestRing(t *testing.T) *ring.Ring {
	t.Helper()
	r, err := ring.New(64)
	require.NoError(t, err)
	return r
}

func TestSelectHandlerDefaultsToLineproto(t *testing.T) {
	r := newTestRing(t)
	h := selectHandler(r, []config.EndpointConfig{
		{Port: "18000", Protocols: []string{"datalink"}},
	})
	_, ok := h.(*lineproto.Handler)
	require.True(t, ok)
}

func TestSelectHandlerPicksWsrelayWhenHTTPAdvertised(t *testing.T) {
	r := newTestRing(t)
	h := selectHandler(r, []config.EndpointConfig{
		{Port: "18000", Protocols: []string{"datalink"}},
		{Port: "8080", Protocols: []string{"HTTP"}},
	})
	_, ok := h.(*wsrelay.Handler)
	require.True(t, ok)
}

func TestSelectHandlerWithNoEndpointsDefaultsToLineproto(t *testing.T) {
	r := newTestRing(t)
	h := selectHandler(r, nil)
	_, ok := h.(*lineproto.Handler)
	require.True(t, ok)
}

func TestBuildListenerSpecTranslatesProtocolsAndFamilies(t *testing.T) {
	cfg := &config.Config{}
	ep := config.EndpointConfig{
		Port:      "18000",
		Protocols: []string{"datalink", "seedlink"},
		Families:  []string{"ipv4", "ipv6"},
	}
	spec, err := buildListenerSpec(ep, cfg)
	require.NoError(t, err)
	require.Equal(t, listener.ProtoDataLink|listener.ProtoSeedLink, spec.Config.Protocols)
	require.Equal(t, listener.FamilyIPv4|listener.FamilyIPv6, spec.Config.Family)
	require.False(t, spec.Config.TLS)
}

func TestBuildListenerSpecDefaultsFamilyToIPv4WhenUnset(t *testing.T) {
	cfg := &config.Config{}
	ep := config.EndpointConfig{Port: "18000", Protocols: []string{"http"}}
	spec, err := buildListenerSpec(ep, cfg)
	require.NoError(t, err)
	require.Equal(t, listener.FamilyIPv4, spec.Config.Family)
}

func TestBuildListenerSpecWiresTLSFromGlobalConfig(t *testing.T) {
	cfg := &config.Config{
		TLS: config.TLSConfig{
			CertFile:         "/etc/ringserver/server.crt",
			KeyFile:          "/etc/ringserver/server.key",
			VerifyClientCert: true,
			ClientCAFile:     "/etc/ringserver/ca.crt",
		},
	}
	ep := config.EndpointConfig{Port: "18500", Protocols: []string{"datalink"}, TLS: true}
	spec, err := buildListenerSpec(ep, cfg)
	require.NoError(t, err)
	require.True(t, spec.Config.TLS)
	require.Equal(t, "/etc/ringserver/server.crt", spec.Config.TLSCertFile)
	require.Equal(t, "/etc/ringserver/server.key", spec.Config.TLSKeyFile)
	require.True(t, spec.Config.VerifyClient)
	require.Equal(t, "/etc/ringserver/ca.crt", spec.Config.TLSClientCAFile)
}

func TestBuildListenerSpecLeavesTLSFieldsEmptyWhenEndpointTLSDisabled(t *testing.T) {
	cfg := &config.Config{
		TLS: config.TLSConfig{CertFile: "/etc/ringserver/server.crt", KeyFile: "/etc/ringserver/server.key"},
	}
	ep := config.EndpointConfig{Port: "18000", Protocols: []string{"datalink"}, TLS: false}
	spec, err := buildListenerSpec(ep, cfg)
	require.NoError(t, err)
	require.Empty(t, spec.Config.TLSCertFile)
	require.Empty(t, spec.Config.TLSKeyFile)
}

func TestBuildListenerSpecPropagatesClientCaps(t *testing.T) {
	cfg := &config.Config{Client: config.ClientConfig{MaxClients: 50, MaxClientsPerIP: 3}}
	ep := config.EndpointConfig{Port: "18000", Protocols: []string{"datalink"}}
	spec, err := buildListenerSpec(ep, cfg)
	require.NoError(t, err)
	require.Equal(t, 50, spec.Admission.MaxClients)
	require.Equal(t, 3, spec.Admission.MaxClientsPerIP)
}

func TestBuildListenerSpecRejectsBadPolicyEntry(t *testing.T) {
	cfg := &config.Config{
		Policy: config.PolicyConfig{Match: []config.PolicyEntry{{CIDR: "not-a-cidr"}}},
	}
	ep := config.EndpointConfig{Port: "18000", Protocols: []string{"datalink"}}
	_, err := buildListenerSpec(ep, cfg)
	require.Error(t, err)
}
