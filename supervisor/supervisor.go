package supervisor

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/ringwire/streamserver/listener"
	"github.com/ringwire/streamserver/metric"
	"github.com/ringwire/streamserver/protocol"
	"github.com/ringwire/streamserver/registry"
	"github.com/ringwire/streamserver/ring"
	"github.com/ringwire/streamserver/transferlog"
)

// Config holds the tick cadence and thresholds: a 250 ms base tick (four
// per nominal second), a 100 ms drain-period tick once shutdown begins, and
// a ~100-tick (~10 s) deadlock budget before clean shutdown is abandoned.
type Config struct {
	TickPeriod      time.Duration
	DrainTickPeriod time.Duration
	DeadlockTicks   int
	ClientTimeout   time.Duration
}

// DefaultConfig returns the server's standard tick cadence.
func DefaultConfig() Config {
	return Config{
		TickPeriod:      250 * time.Millisecond,
		DrainTickPeriod: 100 * time.Millisecond,
		DeadlockTicks:   100,
		ClientTimeout:   5 * time.Minute,
	}
}

// ListenerSpec is one configured endpoint the supervisor keeps running,
// respawning it on the next tick after it's reaped following a crash.
type ListenerSpec struct {
	Config    listener.EndpointConfig
	Admission listener.AdmissionConfig
}

type listenerSlot struct {
	spec   ListenerSpec
	ep     *listener.Endpoint
	unitID registry.UnitID
	active bool
}

// scannerSlot is one configured directory scanner the supervisor keeps
// running, respawning it on the next tick after it's reaped following a
// crash, exactly like a listenerSlot.
type scannerSlot struct {
	job      *registry.ScanJob
	path     string
	interval time.Duration
	unitID   registry.UnitID
	active   bool
}

// Supervisor is the single-threaded coordinator: it owns the ring, the
// registry, and the configured listener endpoints, and runs the tick loop
// that ties them together.
type Supervisor struct {
	Registry        *registry.Registry
	Ring            *ring.Ring
	Handler         protocol.Handler
	MetricsRegistry *metric.MetricsRegistry
	Config          Config
	TransferLog     *transferlog.Writer

	// ConfigReload is polled once per tick; it returns changed=true when the
	// config file's mtime advanced and it successfully re-read it. A nil
	// func disables step 8 entirely.
	ConfigReload func() (changed bool, err error)

	listeners []*listenerSlot
	scanners  []*scannerSlot
	clientWG  sync.WaitGroup

	tickDuration prometheus.Histogram

	draining      bool
	deadlockCount int
}

// New returns a Supervisor ready to have listener specs attached via
// AddListener before Run.
func New(reg *registry.Registry, r *ring.Ring, handler protocol.Handler, metricsReg *metric.MetricsRegistry, cfg Config) *Supervisor {
	s := &Supervisor{
		Registry:        reg,
		Ring:            r,
		Handler:         handler,
		MetricsRegistry: metricsReg,
		Config:          cfg,
	}
	if metricsReg != nil {
		hist := prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tick_duration_seconds",
			Help:    "Wall time spent running one supervisor tick.",
			Buckets: prometheus.DefBuckets,
		})
		if err := metricsReg.RegisterHistogram("supervisor", "tick_duration_seconds", hist); err == nil {
			s.tickDuration = hist
		}
	}
	return s
}

// AddListener registers a listener endpoint to be spawned on the next Run
// and respawned whenever it's reaped outside of draining.
func (s *Supervisor) AddListener(spec ListenerSpec) {
	s.listeners = append(s.listeners, &listenerSlot{spec: spec})
}

// AddScanner registers a directory-scanner job to be spawned on the next
// Run and respawned whenever it's reaped outside of draining, tracked as a
// DirectoryScanner ServerUnit alongside the listener endpoints.
func (s *Supervisor) AddScanner(job *registry.ScanJob, path string, interval time.Duration) {
	s.scanners = append(s.scanners, &scannerSlot{job: job, path: path, interval: interval})
}

// Run drives the tick loop until ctx is cancelled and drain completes (or
// the deadlock budget is exhausted), then shuts down the ring and returns.
// exitCode is 0 on clean shutdown.
func (s *Supervisor) Run(ctx context.Context) (exitCode int, err error) {
	period := s.Config.TickPeriod
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		tickStart := time.Now()
		now := tickStart

		if !s.draining {
			select {
			case <-ctx.Done():
				s.beginDraining()
				ticker.Reset(s.Config.DrainTickPeriod)
			default:
			}
		}

		if s.draining {
			s.deadlockCount++
			if s.deadlockCount > s.Config.DeadlockTicks {
				s.forceJoinServerUnits()
				s.shutdownRing()
				return 1, nil
			}
		}

		rollingOver := s.transferLogRolledOver(now)

		runningServers := s.tickServerUnits()
		runningClients := s.tickClientUnits(now, rollingOver)

		configChanged := false
		if s.ConfigReload != nil {
			if changed, rerr := s.ConfigReload(); rerr == nil && changed {
				configChanged = true
			}
		}

		if s.TransferLog != nil && (rollingOver || configChanged) {
			w := s.TransferLog.Window()
			next := transferlog.NewWindow(w.BaseDir, w.Prefix, w.IntervalHours, w.EnableTX, w.EnableRX, now)
			_ = s.TransferLog.Rollover(next)
		}

		if s.tickDuration != nil {
			s.tickDuration.Observe(time.Since(tickStart).Seconds())
		}

		if s.draining && runningServers == 0 && runningClients == 0 {
			s.shutdownRing()
			return 0, nil
		}

		if s.draining {
			<-ticker.C
			continue
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
		}
	}
}

// transferLogRolledOver reports whether now has crossed the transfer log's
// current window boundary. Rows are only written on the tick that trips
// this, matching the reference server's tlogwrite flag: the log gets one
// row per client per window, not one per tick.
func (s *Supervisor) transferLogRolledOver(now time.Time) bool {
	if s.TransferLog == nil {
		return false
	}
	return !s.TransferLog.Window().Contains(now)
}

func (s *Supervisor) beginDraining() {
	s.draining = true
	for _, slot := range s.listeners {
		if slot.active {
			if slot.ep != nil {
				_ = slot.ep.Close()
			}
			if unit, ok := s.Registry.ServerUnits.Get(slot.unitID); ok {
				unit.RequestStop()
			}
		}
	}
	for _, slot := range s.scanners {
		if slot.active {
			if unit, ok := s.Registry.ServerUnits.Get(slot.unitID); ok {
				unit.RequestStop()
			}
		}
	}
	for _, client := range s.Registry.ClientUnits.Snapshot() {
		client.Lifecycle.RequestClose()
	}
}

// forceJoinServerUnits is the deadlock-budget escape hatch: rather than
// waiting one more tick per unit, it joins every still-active listener
// concurrently with a bounded timeout, so one wedged unit can't hold up
// the others.
func (s *Supervisor) forceJoinServerUnits() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, slot := range s.listeners {
		if !slot.active {
			continue
		}
		unit, ok := s.Registry.ServerUnits.Get(slot.unitID)
		if !ok {
			continue
		}
		g.Go(func() error {
			return unit.Join(gctx)
		})
	}
	for _, slot := range s.scanners {
		if !slot.active {
			continue
		}
		unit, ok := s.Registry.ServerUnits.Get(slot.unitID)
		if !ok {
			continue
		}
		g.Go(func() error {
			return unit.Join(gctx)
		})
	}
	_ = g.Wait()
}

func (s *Supervisor) shutdownRing() {
	s.clientWG.Wait()
	_ = s.Ring.Close()
}

// tickServerUnits reaps Closed units, and outside draining, respawns any
// slot that isn't currently running — listeners and directory scanners
// alike, matching the reference server's single server-thread list.
func (s *Supervisor) tickServerUnits() int {
	running := 0
	for _, slot := range s.listeners {
		if slot.active {
			unit, ok := s.Registry.ServerUnits.Get(slot.unitID)
			if !ok {
				slot.active = false
			} else if unit.Lifecycle.State() == registry.Closed {
				_ = unit.Join(context.Background())
				s.Registry.ServerUnits.Remove(slot.unitID)
				slot.active = false
			}
		}
		if !slot.active && !s.draining {
			if err := s.spawnListener(slot); err == nil {
				running++
			}
			continue
		}
		if slot.active {
			running++
		}
	}
	for _, slot := range s.scanners {
		if slot.active {
			unit, ok := s.Registry.ServerUnits.Get(slot.unitID)
			if !ok {
				slot.active = false
			} else if unit.Lifecycle.State() == registry.Closed {
				_ = unit.Join(context.Background())
				s.Registry.ServerUnits.Remove(slot.unitID)
				slot.active = false
			}
		}
		if !slot.active && !s.draining {
			if err := s.spawnScanner(slot); err == nil {
				running++
			}
			continue
		}
		if slot.active {
			running++
		}
	}
	return running
}

func (s *Supervisor) spawnListener(slot *listenerSlot) error {
	ep, err := listener.NewEndpoint(slot.spec.Config, slot.spec.Admission, s.Registry, s.MetricsRegistry)
	if err != nil {
		return err
	}
	if err := ep.Bind(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	unit := registry.NewServerUnit(registry.KindListener, ep, cancel)
	unit.Lifecycle.SetActive()
	s.Registry.ServerUnits.Add(unit.ID, unit)

	slot.ep = ep
	slot.unitID = unit.ID
	slot.active = true

	go func() {
		runErr := ep.Run(ctx, s.admitClient)
		unit.MarkDone(runErr)
	}()
	return nil
}

func (s *Supervisor) spawnScanner(slot *scannerSlot) error {
	ctx, cancel := context.WithCancel(context.Background())
	unit := registry.NewServerUnit(registry.KindDirectoryScanner, slot.job, cancel)
	unit.Lifecycle.SetActive()
	s.Registry.ServerUnits.Add(unit.ID, unit)

	slot.unitID = unit.ID
	slot.active = true

	go func() {
		runErr := slot.job.Run(ctx, slot.interval)
		unit.MarkDone(runErr)
	}()
	return nil
}

// admitClient is the AdmitHandler passed to every listener endpoint: it
// registers the freshly admitted ClientRecord and spawns its protocol
// worker.
func (s *Supervisor) admitClient(conn net.Conn, record *registry.ClientRecord) {
	record.Lifecycle.SetActive()
	s.Registry.ClientUnits.Add(record.ID, record)

	s.clientWG.Add(1)
	go func() {
		defer s.clientWG.Done()
		_ = s.Handler.Handle(context.Background(), conn, record)
		record.Lifecycle.SetClosed()
	}()
}

// tickClientUnits reaps Closed entries, updates rates for the rest, and
// marks idle clients for close. Transfer-log rows are written only when
// writeTransferLog is set, i.e. this tick crossed the log's rollover
// boundary.
func (s *Supervisor) tickClientUnits(now time.Time, writeTransferLog bool) int {
	s.Registry.ReapClientUnits()

	running := 0
	var txSum, rxSum float64

	for id, client := range s.Registry.ClientUnits.Snapshot() {
		client.UpdateRates(now, s.Ring)
		txSum += client.TxPacketRate
		rxSum += client.RxPacketRate

		if s.TransferLog != nil && writeTransferLog {
			_ = s.TransferLog.WriteRow(transferlog.Row{
				At:        now,
				ClientID:  idString(id),
				DisplayID: client.DisplayID,
				TxPackets: client.TxPackets,
				TxBytes:   client.TxBytes,
				RxPackets: client.RxPackets,
				RxBytes:   client.RxBytes,
			})
		}

		if s.Config.ClientTimeout > 0 && client.IdleFor(now) > s.Config.ClientTimeout {
			client.Lifecycle.RequestClose()
		}

		running++
	}

	s.Ring.SetAggregateRates(txSum, rxSum)
	return running
}

func idString(id registry.UnitID) string {
	return strconv.FormatUint(uint64(id), 10)
}
