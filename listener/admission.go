package listener

import (
	"net/netip"

	"github.com/ringwire/streamserver/ippolicy"
	"github.com/ringwire/streamserver/registry"
)

// AdmissionResult is the outcome of running a connecting address through
// the ordered admission pipeline.
type AdmissionResult struct {
	Admit        bool
	Reason       string
	WritePerm    bool
	Trusted      bool
	LimitPattern string
}

// Admit applies admission checks in a fixed order: match, then reject, then
// per-IP cap (skipped for write-permitted sources), then the global cap
// with its write-list reserve exemption.
func Admit(cfg AdmissionConfig, addr netip.Addr, perIPCount, globalClientCount int) AdmissionResult {
	decision := cfg.Policy.Evaluate(addr)
	if !decision.Admit {
		return AdmissionResult{Admit: false, Reason: decision.Reason}
	}

	if cfg.MaxClientsPerIP > 0 && !decision.WritePerm {
		if perIPCount >= cfg.MaxClientsPerIP {
			return AdmissionResult{Admit: false, Reason: "too many connections from this address"}
		}
	}

	if cfg.MaxClients > 0 && globalClientCount >= cfg.MaxClients {
		reserveOK := decision.WritePerm && globalClientCount < cfg.MaxClients+registry.ReserveConnections
		if !reserveOK {
			return AdmissionResult{Admit: false, Reason: "maximum number of clients exceeded"}
		}
	}

	result := AdmissionResult{Admit: true, WritePerm: decision.WritePerm, Trusted: decision.Trusted}
	if decision.HasLimit {
		result.LimitPattern = decision.LimitEntry.Pattern()
	}
	return result
}

// PerIPCount is a thin wrapper over ippolicy.CountFromAddress so callers in
// this package don't need to import ippolicy directly for the common case.
func PerIPCount(lister ippolicy.AddressLister, addr netip.Addr) int {
	return ippolicy.CountFromAddress(lister, addr)
}
