// Package affinity pins the calling goroutine's OS thread to a CPU core
// (§5 "each task is intended to run pinned to its own hardware thread").
//
// Adapted from the teacher's original_source equivalent
// (common/thread_utils.h's setThreadCore), which treated a failed pin as
// fatal (exit on failure). Per §5, pinning here is a placement policy,
// not a correctness requirement: a failure to pin is logged and the
// goroutine keeps running unpinned rather than aborting the process.
package affinity

import (
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"
)

// Pin locks the calling goroutine to its current OS thread and attempts
// to restrict that thread's scheduling to core. Must be called from the
// goroutine that is to be pinned — typically the first statement in a
// task's run loop. A negative core disables pinning.
func Pin(logger zerolog.Logger, core int) {
	if core < 0 {
		return
	}

	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(core)

	if err := unix.SchedSetaffinity(0, &set); err != nil {
		logger.Warn().Err(err).Int("core", core).Msg("failed to set thread affinity, continuing unpinned")
		return
	}
	logger.Info().Int("core", core).Msg("pinned thread to core")
}
