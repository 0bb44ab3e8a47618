package admin

import (
	"encoding/json"
	"net/http"

	"github.com/ringwire/streamserver/registry"
	"github.com/ringwire/streamserver/ring"
)

// StatusSnapshot is the JSON shape returned by /status: ring position and
// throughput, plus server/client unit counts. Grounded on the teacher's
// component_manager_http.go handleComponentsHealth's "aggregate current
// state into one JSON document" shape.
type StatusSnapshot struct {
	RingLatestID      uint64  `json:"ring_latest_id"`
	RingLatestOffset  uint64  `json:"ring_latest_offset"`
	RingEarliestID    uint64  `json:"ring_earliest_id"`
	RingMaxOffset     uint64  `json:"ring_max_offset"`
	AggregateTxRate   float64 `json:"aggregate_tx_rate"`
	AggregateRxRate   float64 `json:"aggregate_rx_rate"`
	ServerUnitCount   int     `json:"server_unit_count"`
	ClientUnitCount   int     `json:"client_unit_count"`
	DroppedPackets    int64   `json:"dropped_packets"`
	OverflowedPackets int64   `json:"overflowed_packets"`
}

func buildStatus(reg *registry.Registry, r *ring.Ring) StatusSnapshot {
	s := StatusSnapshot{
		ServerUnitCount: reg.ServerUnits.Len(),
		ClientUnitCount: reg.ClientUnits.Len(),
	}

	if latestID, latestOffset, ok := r.Latest(); ok {
		s.RingLatestID = latestID
		s.RingLatestOffset = latestOffset
	}
	if earliestID, _, ok := r.Earliest(); ok {
		s.RingEarliestID = earliestID
	}
	s.RingMaxOffset = r.MaxOffset()
	s.AggregateTxRate, s.AggregateRxRate = r.AggregateRates()

	if stats := r.Stats(); stats != nil {
		summary := stats.Summary()
		s.DroppedPackets = summary.Drops
		s.OverflowedPackets = summary.Overflows
	}
	return s
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snapshot := buildStatus(s.Registry, s.Ring)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// ClientSummary is one row of /clients' JSON array.
type ClientSummary struct {
	ID           string  `json:"id"`
	DisplayID    string  `json:"display_id"`
	Protocol     int     `json:"protocol"`
	TxPacketRate float64 `json:"tx_packet_rate"`
	RxPacketRate float64 `json:"rx_packet_rate"`
	PercentLag   int     `json:"percent_lag"`
}

func (s *Server) handleClients(w http.ResponseWriter, _ *http.Request) {
	var clients []ClientSummary
	for _, c := range s.Registry.ClientUnits.Snapshot() {
		clients = append(clients, ClientSummary{
			ID:           idString(c.ID),
			DisplayID:    c.DisplayID,
			Protocol:     int(c.Protocol),
			TxPacketRate: c.TxPacketRate,
			RxPacketRate: c.RxPacketRate,
			PercentLag:   c.PercentLag,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(clients)
}
