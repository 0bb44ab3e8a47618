package listener

import (
	"context"
	"crypto/tls"
	"net"
	"net/netip"
	"os"
	"strconv"

	"github.com/ringwire/streamserver/errors"
	"github.com/ringwire/streamserver/metric"
	"github.com/ringwire/streamserver/registry"
)

// AdmitHandler is invoked once per admitted connection, after its
// ClientRecord has been built. It owns the connection from this point on —
// the listener plays no further part once AdmitHandler is called.
type AdmitHandler func(conn net.Conn, record *registry.ClientRecord)

// Endpoint is one acceptor: bind, accept, admit, hand off. Grounded on the
// teacher's input/udp read-loop idiom, generalized from a UDP socket to a
// net.Listener-based Accept() loop.
type Endpoint struct {
	Config    EndpointConfig
	Admission AdmissionConfig
	Registry  *registry.Registry

	tlsConfig *tls.Config
	ln        net.Listener

	metrics *listenerMetrics
}

// NewEndpoint validates cfg and constructs an Endpoint ready for Bind.
func NewEndpoint(cfg EndpointConfig, admission AdmissionConfig, reg *registry.Registry, metricsReg *metric.MetricsRegistry) (*Endpoint, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tlsCfg, err := cfg.tlsConfig()
	if err != nil {
		return nil, err
	}

	var m *listenerMetrics
	if metricsReg != nil {
		m, err = newListenerMetrics(metricsReg, cfg.Port)
		if err != nil {
			return nil, errors.WrapTransient(err, "Endpoint", "NewEndpoint", "metrics registration")
		}
	}

	return &Endpoint{
		Config:    cfg,
		Admission: admission,
		Registry:  reg,
		tlsConfig: tlsCfg,
		metrics:   m,
	}, nil
}

// Bind opens the endpoint's socket: TCP for a numeric port, UNIX for a
// filesystem path.
func (e *Endpoint) Bind() error {
	network := "tcp"
	addr := ":" + e.Config.Port
	if e.Config.Family == FamilyUnix {
		network = "unix"
		addr = e.Config.Port
	}

	ln, err := net.Listen(network, addr)
	if err != nil {
		return errors.WrapFatal(err, "Endpoint", "Bind", "listen on "+addr)
	}
	if e.tlsConfig != nil {
		ln = tls.NewListener(ln, e.tlsConfig)
	}
	e.ln = ln
	return nil
}

// Run accepts connections until ctx is cancelled or the listener is
// closed, applying the admission pipeline to each and handing admitted
// connections to onAdmit. Transient accept errors are retried; anything
// else, or ctx cancellation, ends the loop.
func (e *Endpoint) Run(ctx context.Context, onAdmit AdmitHandler) error {
	defer e.cleanupUnix()

	for {
		conn, err := e.ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return errors.WrapTransient(err, "Endpoint", "Run", "accept")
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}

		hostStr, portStr := e.resolveAddr(conn)
		record, _, ok := e.admit(hostStr, portStr)
		if !ok {
			e.recordRejected()
			_ = conn.Close()
			continue
		}

		e.recordAccepted()
		onAdmit(conn, record)
	}
}

// admit runs the admission pipeline for a freshly resolved address and, if
// admitted, builds the ClientRecord.
func (e *Endpoint) admit(hostStr, portStr string) (*registry.ClientRecord, netip.Addr, bool) {
	addr := netip.IPv4Unspecified()
	if e.Config.Family != FamilyUnix {
		var err error
		addr, err = netip.ParseAddr(hostStr)
		if err != nil {
			return nil, netip.Addr{}, false
		}
	}

	perIPCount := 0
	if e.Admission.MaxClientsPerIP > 0 {
		perIPCount = PerIPCount(e.Registry, addr)
	}
	globalCount := e.Registry.ClientCount()

	result := Admit(e.Admission, addr, perIPCount, globalCount)
	if !result.Admit {
		return nil, addr, false
	}

	rec := registry.NewClientRecord(addr, hostStr, portStr, hostStr+":"+portStr)
	rec.EndpointTag = e.Config.Port
	rec.TLS = e.Config.TLS
	rec.WritePerm = result.WritePerm
	rec.Trusted = result.Trusted
	rec.LimitPattern = result.LimitPattern
	return rec, addr, true
}

func (e *Endpoint) resolveAddr(conn net.Conn) (hostStr, portStr string) {
	if e.Config.Family == FamilyUnix {
		return "unix", e.Config.Port
	}
	addrPort, err := netip.ParseAddrPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String(), ""
	}
	return addrPort.Addr().String(), strconv.Itoa(int(addrPort.Port()))
}

func (e *Endpoint) cleanupUnix() {
	if e.Config.Family == FamilyUnix {
		_ = os.Remove(e.Config.Port)
	}
}

// Close closes the endpoint's listening socket, unblocking Accept.
func (e *Endpoint) Close() error {
	if e.ln == nil {
		return nil
	}
	return e.ln.Close()
}

func (e *Endpoint) recordAccepted() {
	if e.metrics != nil {
		e.metrics.accepted.Inc()
	}
}

func (e *Endpoint) recordRejected() {
	if e.metrics != nil {
		e.metrics.rejected.Inc()
	}
}
