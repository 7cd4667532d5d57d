package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/hupe1980/phyalf"
)

// progressReporter draws a one-line stage progress bar on a terminal.
type progressReporter struct {
	enabled bool
	w       io.Writer
	done    int
	start   time.Time
	lastLen int
}

func newProgressReporter(asJSON bool) *progressReporter {
	stat, err := os.Stderr.Stat()
	enabled := err == nil && (stat.Mode()&os.ModeCharDevice) != 0 && !asJSON
	return &progressReporter{
		enabled: enabled,
		w:       os.Stderr,
		start:   time.Now(),
	}
}

// Stage implements phyalf.ProgressFunc.
func (r *progressReporter) Stage(stage phyalf.Stage, weight int) {
	r.done += weight
	if !r.enabled {
		return
	}
	pct := 100 * r.done / phyalf.TotalWeight
	const width = 30
	bar := strings.Repeat("#", width*pct/100) + strings.Repeat(".", width-width*pct/100)
	r.printStatus(fmt.Sprintf("[%s] %3d%% %s", bar, pct, stage))
}

// Done ends the progress line with the outcome of the conversion.
func (r *progressReporter) Done(err error) {
	if !r.enabled {
		return
	}
	elapsed := time.Since(r.start).Round(time.Millisecond)
	if err != nil {
		r.printStatus(fmt.Sprintf("conversion failed after %s", elapsed))
	} else {
		r.printStatus(fmt.Sprintf("conversion complete in %s", elapsed))
	}
	fmt.Fprintln(r.w)
}

func (r *progressReporter) printStatus(status string) {
	if r.lastLen > len(status) {
		status += strings.Repeat(" ", r.lastLen-len(status))
	}
	r.lastLen = len(status)
	fmt.Fprintf(r.w, "\r%s", status)
}
