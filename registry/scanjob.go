package registry

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/ringwire/streamserver/errors"
	"github.com/ringwire/streamserver/natsclient"
	"github.com/ringwire/streamserver/pkg/worker"
)

// discoveredFilesSubject is the JetStream subject the scanner publishes
// newly discovered file paths to. Consuming and archiving those files is
// out of scope for this repo; publishing gives the scanner thread kind a
// real, observable side effect instead of a no-op stub.
const discoveredFilesSubject = "scanjobs.discovered"

// ScanJobConfig is a directory-scanner description: (path, stateFile,
// match, reject, initCurrentState).
type ScanJobConfig struct {
	Path             string
	StateFile        string
	MatchPattern     string
	RejectPattern    string
	InitCurrentState bool
}

// ScanJob is the payload a DirectoryScanner ServerUnit carries: walks
// Config.Path, tracks which files it has already reported in StateFile,
// and publishes newly discovered paths to NATS via a bounded worker pool.
type ScanJob struct {
	Config ScanJobConfig

	matchRe  *regexp.Regexp
	rejectRe *regexp.Regexp

	nats *natsclient.Client
	pool *worker.Pool[string]

	seen map[string]struct{}
}

// NewScanJob compiles the job's match/reject patterns once (the
// pkg/security "validate once, store compiled form" idiom) and wires a
// bounded fan-out pool that publishes each discovered path to NATS.
func NewScanJob(cfg ScanJobConfig, nc *natsclient.Client, poolSize int) (*ScanJob, error) {
	var matchRe, rejectRe *regexp.Regexp
	var err error
	if cfg.MatchPattern != "" {
		if matchRe, err = regexp.Compile(cfg.MatchPattern); err != nil {
			return nil, errors.WrapInvalid(err, "ScanJob", "NewScanJob", "compile match pattern")
		}
	}
	if cfg.RejectPattern != "" {
		if rejectRe, err = regexp.Compile(cfg.RejectPattern); err != nil {
			return nil, errors.WrapInvalid(err, "ScanJob", "NewScanJob", "compile reject pattern")
		}
	}

	sj := &ScanJob{
		Config:   cfg,
		matchRe:  matchRe,
		rejectRe: rejectRe,
		nats:     nc,
		seen:     make(map[string]struct{}),
	}

	sj.pool = worker.NewPool(poolSize, poolSize*4, sj.publish)

	if cfg.InitCurrentState {
		if err := sj.loadState(); err != nil {
			return nil, errors.WrapTransient(err, "ScanJob", "NewScanJob", "load state file")
		}
	}

	return sj, nil
}

func (sj *ScanJob) publish(ctx context.Context, path string) error {
	if sj.nats == nil {
		return nil
	}
	return sj.nats.PublishToStream(ctx, discoveredFilesSubject, []byte(path))
}

func (sj *ScanJob) accepts(path string) bool {
	if sj.matchRe != nil && !sj.matchRe.MatchString(path) {
		return false
	}
	if sj.rejectRe != nil && sj.rejectRe.MatchString(path) {
		return false
	}
	return true
}

// Scan walks Config.Path once, submitting every not-yet-seen, policy-
// accepted file to the publish pool, then persists the updated state file.
func (sj *ScanJob) Scan(ctx context.Context) error {
	// A stopped pool cannot be restarted, so each pass gets a fresh one.
	stats := sj.pool.Stats()
	sj.pool = worker.NewPool(stats.Workers, stats.QueueSize, sj.publish)
	if err := sj.pool.Start(ctx); err != nil {
		return errors.WrapTransient(err, "ScanJob", "Scan", "start publish pool")
	}
	defer sj.pool.Stop(5 * time.Second)

	err := filepath.WalkDir(sj.Config.Path, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		if _, already := sj.seen[path]; already {
			return nil
		}
		if !sj.accepts(path) {
			return nil
		}
		sj.seen[path] = struct{}{}
		return sj.pool.Submit(path)
	})
	if err != nil {
		return errors.WrapTransient(err, "ScanJob", "Scan", "walk directory")
	}

	return sj.saveState()
}

// Run scans Config.Path immediately and then again every interval until
// ctx is cancelled, mirroring the reference server's scan thread: a
// DirectoryScanner ServerUnit blocks in filesystem traversal between
// passes rather than exiting after one. A non-positive interval falls
// back to a 30-second default. Returns nil on clean cancellation; any
// Scan error ends the loop and is returned so the wrapping ServerUnit
// records it as LastError.
func (sj *ScanJob) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if err := sj.Scan(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := sj.Scan(ctx); err != nil {
				return err
			}
		}
	}
}

func (sj *ScanJob) loadState() error {
	if sj.Config.StateFile == "" {
		return nil
	}
	f, err := os.Open(sj.Config.StateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		sj.seen[scanner.Text()] = struct{}{}
	}
	return scanner.Err()
}

func (sj *ScanJob) saveState() error {
	if sj.Config.StateFile == "" {
		return nil
	}
	f, err := os.Create(sj.Config.StateFile)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for path := range sj.seen {
		if _, err := w.WriteString(path + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}
