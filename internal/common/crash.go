// -----------------------------------------------------------------------
// Crash reports - post-mortem files written on fatal panics
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// crashDir receives crash report files. Set once from main before
// anything else can panic.
var crashDir = "./logs"

// InstallCrashHandler records where crash reports go and makes sure the
// directory exists. Call first in main, paired with a deferred
// RecoverWithCrashFile.
func InstallCrashHandler(dir string) {
	if dir != "" {
		crashDir = dir
	}
	if err := os.MkdirAll(crashDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "crash handler: cannot create %s: %v\n", crashDir, err)
	}
}

// RecoverWithCrashFile converts an escaped panic into a crash report
// file and a non-zero exit. Use as a deferred call at the top of main.
func RecoverWithCrashFile() {
	r := recover()
	if r == nil {
		return
	}
	WriteCrashFile(r, currentStack())
	os.Exit(1)
}

// WriteCrashFile dumps the panic value, the originating stack and a
// full goroutine dump to a timestamped file under the crash directory.
// Returns the file path, or "" when even the file write failed.
func WriteCrashFile(panicVal interface{}, stack string) string {
	now := time.Now()
	path := filepath.Join(crashDir, fmt.Sprintf("crash-%s.log", now.Format("2006-01-02T15-04-05")))

	var b strings.Builder
	b.WriteString("=== INDAGO CRASH REPORT ===\n")
	fmt.Fprintf(&b, "time: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&b, "version: %s\n", GetFullVersion())
	fmt.Fprintf(&b, "go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(&b, "goroutines: %d\n\n", runtime.NumGoroutine())

	fmt.Fprintf(&b, "panic: %v\n\n", panicVal)
	b.WriteString(stack)
	b.WriteString("\n=== ALL GOROUTINES ===\n")
	b.WriteString(allStacks())
	b.WriteString("\n=== END CRASH REPORT ===\n")

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "crash handler: cannot write %s: %v\n%s", path, err, b.String())
		return ""
	}

	fmt.Fprintf(os.Stderr, "fatal panic: %v\ncrash report: %s\n", panicVal, path)
	return path
}

func currentStack() string {
	buf := make([]byte, 8192)
	return string(buf[:runtime.Stack(buf, false)])
}

// allStacks grows the buffer until the full dump fits.
func allStacks() string {
	for size := 64 * 1024; ; size *= 2 {
		buf := make([]byte, size)
		n := runtime.Stack(buf, true)
		if n < size || size >= 16*1024*1024 {
			return string(buf[:n])
		}
	}
}
