// Package supervisor is the ~1 Hz tick loop: the single coordinator that
// owns the ring, reaps terminated server and client units,
// respawns crashed listeners, aggregates per-client rates, rolls the
// transfer log over, rereads configuration on change, and drives graceful
// shutdown to completion.
//
// Grounded on the teacher's service.Manager StartAll/StopAll ordering
// (service/service_manager.go) and cmd/semstreams/main.go's
// runWithSignalHandling, generalized from "start N named services once"
// to "tick forever, reap, respawn, aggregate, roll over, drain".
package supervisor
