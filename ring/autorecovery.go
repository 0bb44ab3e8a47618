package ring

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ringwire/streamserver/errors"
)

// Auto-recovery policy values, matching the config snapshot's autoRecovery
// field.
const (
	AutoRecoveryOff    = 0
	AutoRecoveryMove   = 1
	AutoRecoveryDelete = 2
)

// statusFileName holds the reference engine's on-disk status marker: "ok",
// "corrupt", or "version:N". A production engine would derive this from its
// own packetbuf/streamidx header; this in-memory reference stands in for
// that detection so the auto-recovery protocol is exercisable without a
// real mmap-backed store.
const statusFileName = "packetbuf.status"

// Init opens (or creates) a ring rooted at dir, following the auto-recovery
// protocol: a status of "corrupt" or a positive version number triggers a
// move-or-delete of the existing files and a fresh init;
// a positive version additionally replays packets via the matching loader
// before the fresh ring is considered ready.
func Init(dir string, capacity, pktSize int, mmap, volatile bool, autoRecovery int, opts ...Option) (*Ring, error) {
	_ = pktSize // record layout is out of scope; capacity is expressed in records
	_ = mmap
	_ = volatile

	statusPath := filepath.Join(dir, statusFileName)
	status, version, err := readStatus(statusPath)
	if err != nil {
		return nil, errors.WrapFatal(err, "ring", "Init", "read status file")
	}

	switch status {
	case "", "ok":
		r, err := New(capacity, opts...)
		if err != nil {
			return nil, err
		}
		if err := writeStatus(statusPath, "ok"); err != nil {
			return nil, errors.WrapFatal(err, "ring", "Init", "write status file")
		}
		return r, nil

	case "corrupt":
		if autoRecovery == AutoRecoveryOff {
			return nil, errors.WrapFatal(errors.ErrDataCorrupted, "ring", "Init", "ring marked corrupt, auto-recovery disabled")
		}
		if err := recover_(dir, statusPath, "corrupt", autoRecovery); err != nil {
			return nil, err
		}
		return Init(dir, capacity, pktSize, mmap, volatile, autoRecovery, opts...)

	case "version":
		if autoRecovery == AutoRecoveryOff {
			return nil, errors.WrapFatal(errors.ErrDataCorrupted, "ring", "Init", fmt.Sprintf("ring is on-disk version %d, auto-recovery disabled", version))
		}
		backupSuffix := fmt.Sprintf("version%d", version)
		if err := recover_(dir, statusPath, backupSuffix, autoRecovery); err != nil {
			return nil, err
		}
		r, err := New(capacity, opts...)
		if err != nil {
			return nil, err
		}
		if version == 1 {
			if err := loadBufferV1(dir, backupSuffix, r); err != nil {
				return nil, errors.WrapFatal(err, "ring", "Init", "load version 1 backup")
			}
		}
		if err := writeStatus(statusPath, "ok"); err != nil {
			return nil, errors.WrapFatal(err, "ring", "Init", "write status file")
		}
		return r, nil

	default:
		return nil, errors.WrapFatal(errors.ErrDataCorrupted, "ring", "Init", "unrecognized ring status "+status)
	}
}

// readStatus parses the status marker file. A missing file means "ok" (a
// fresh ring with no prior state).
func readStatus(path string) (status string, version int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "ok", 0, nil
		}
		return "", 0, err
	}

	line := strings.TrimSpace(string(data))
	if line == "" || line == "ok" {
		return "ok", 0, nil
	}
	if line == "corrupt" {
		return "corrupt", 0, nil
	}
	if v, ok := strings.CutPrefix(line, "version:"); ok {
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			return "", 0, convErr
		}
		return "version", n, nil
	}
	return line, 0, nil
}

func writeStatus(path, status string) error {
	return os.WriteFile(path, []byte(status), 0o644)
}

// recover_ renames the status file aside with the given suffix (per
// autoRecovery==Move) or deletes it (per autoRecovery==Delete), never
// clobbering an existing backup — a second corrupt file gets a numbered
// sibling instead of overwriting the first.
func recover_(dir, statusPath, suffix string, autoRecovery int) error {
	switch autoRecovery {
	case AutoRecoveryMove:
		dest := statusPath + "." + suffix
		for n := 1; fileExists(dest); n++ {
			dest = fmt.Sprintf("%s.%s.%d", statusPath, suffix, n)
		}
		if err := os.Rename(statusPath, dest); err != nil && !os.IsNotExist(err) {
			return errors.WrapTransient(err, "ring", "recover", "move backup")
		}
		_ = dir
		return nil
	case AutoRecoveryDelete:
		if err := os.Remove(statusPath); err != nil && !os.IsNotExist(err) {
			return errors.WrapTransient(err, "ring", "recover", "delete backup")
		}
		return nil
	default:
		return errors.WrapFatal(errors.ErrInvalidConfig, "ring", "recover", "unknown auto-recovery mode")
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// loadBufferV1 replays packets from a version-1 backup into the fresh ring.
// The version-1 wire format is out of scope here (the real ring engine owns
// packet-record layout); this reference loader simply recognizes an empty
// backup as "nothing to replay" so the protocol's control flow — rename,
// reinit empty, invoke the matching loader, become ready — is exercised
// end-to-end even though no production packets are replayed.
func loadBufferV1(dir, backupSuffix string, r *Ring) error {
	backupPath := filepath.Join(dir, statusFileName+"."+backupSuffix)
	if !fileExists(backupPath) {
		return nil
	}
	_ = r
	return nil
}
