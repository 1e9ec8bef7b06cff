package ocr

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Runner abstracts the tesseract/pdftoppm/magick subprocess calls so tests
// can script them.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	log *slog.Logger
}

func newExecRunner(log *slog.Logger) execRunner {
	if log == nil {
		log = slog.Default()
	}
	return execRunner{log: log}
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if err != nil {
		r.log.Error("ocr.exec.failed",
			"cmd", name,
			"args", strings.Join(args, " "),
			"elapsed_ms", elapsed.Milliseconds(),
			"error", err,
			"stderr", truncateOutput(stderr.String(), 8<<10),
		)
	} else {
		r.log.Debug("ocr.exec.ok",
			"cmd", name,
			"elapsed_ms", elapsed.Milliseconds(),
			"stdout_bytes", stdout.Len(),
		)
	}

	return stdout.Bytes(), stderr.Bytes(), err
}

func truncateOutput(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
