// -----------------------------------------------------------------------
// Background tasks - panic-isolated goroutine spawning
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

var backgroundTasks atomic.Int64

// BackgroundTaskCount reports how many tasks were spawned through
// SafeGo since startup. Exposed on the health endpoint.
func BackgroundTaskCount() int64 {
	return backgroundTasks.Load()
}

// SafeGo runs fn on its own goroutine and downgrades a panic to an
// error log. Event fan-out and other fire-and-forget work goes through
// here so one broken subscriber cannot take the process down.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	backgroundTasks.Add(1)

	go func() {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			buf := make([]byte, 8192)
			stack := string(buf[:runtime.Stack(buf, false)])
			if logger == nil {
				fmt.Fprintf(os.Stderr, "panic in background task %s: %v\n%s\n", name, r, stack)
				return
			}
			logger.Error().
				Str("task", name).
				Str("panic", fmt.Sprintf("%v", r)).
				Str("stack", stack).
				Msg("Recovered from panic in background task")
		}()

		fn()
	}()
}
