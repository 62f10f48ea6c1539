// Package runner spawns ffmpeg with a prepared argument list, streaming
// progress blocks back to the caller and capturing diagnostics for error
// reporting.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/peelkit/matte/internal/logging"
	"github.com/peelkit/matte/pkg/util"
)

// ErrBinaryNotFound reports that the ffmpeg binary could not be spawned.
var ErrBinaryNotFound = errors.New("ffmpeg binary not found")

// Progress is one parsed ffmpeg progress block.
type Progress struct {
	Frame   int64
	FPS     float64
	Bitrate string
	Time    string
	Seconds float64
	Speed   string
}

// Options configure a Run. In verbose mode ffmpeg's output streams through
// to the process's stderr; otherwise it is buffered and only surfaces on
// failure.
type Options struct {
	Verbose    bool
	OnProgress func(Progress)
	Logger     zerolog.Logger
}

// Run executes ffmpeg to completion. The error for a nonzero exit carries
// the captured diagnostic output; a missing binary wraps ErrBinaryNotFound.
func Run(ctx context.Context, ffmpegPath string, args []string, opts Options) error {
	logger := logging.WithComponent(opts.Logger, "runner")

	full := append([]string{"-hide_banner", "-loglevel", "info", "-progress", "pipe:2"}, args...)

	logger.Debug().
		Str("cmd", ffmpegPath).
		Strs("args", full).
		Msg("executing ffmpeg")

	cmd := exec.CommandContext(ctx, ffmpegPath, full...)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrBinaryNotFound, ffmpegPath)
		}
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	var captured bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		streamOutput(stderr, &captured, opts)
	}()
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg failed: %w\n%s", err, strings.TrimSpace(captured.String()))
	}

	logger.Debug().Msg("ffmpeg execution completed")
	return nil
}

// streamOutput scans ffmpeg's stderr, accumulating progress key=value pairs
// until a progress= terminator closes the block.
func streamOutput(r io.Reader, captured *bytes.Buffer, opts Options) {
	scanner := bufio.NewScanner(r)
	var p Progress

	for scanner.Scan() {
		line := scanner.Text()

		if opts.Verbose {
			fmt.Fprintln(os.Stderr, line)
		} else {
			captured.WriteString(line)
			captured.WriteByte('\n')
		}

		p = parseProgressLine(p, line, opts.OnProgress)
	}
}

func parseProgressLine(p Progress, line string, onProgress func(Progress)) Progress {
	switch {
	case strings.HasPrefix(line, "frame="):
		fmt.Sscanf(line, "frame=%d", &p.Frame)
	case strings.HasPrefix(line, "fps="):
		fmt.Sscanf(line, "fps=%f", &p.FPS)
	case strings.HasPrefix(line, "bitrate="):
		p.Bitrate = valueOf(line)
	case strings.HasPrefix(line, "out_time="):
		p.Time = valueOf(line)
		if d, err := util.ParseTimestamp(p.Time); err == nil {
			p.Seconds = d.Seconds()
		}
	case strings.HasPrefix(line, "speed="):
		p.Speed = valueOf(line)
	case strings.HasPrefix(line, "progress="):
		if onProgress != nil && p.Frame > 0 {
			onProgress(p)
		}
		return Progress{}
	}
	return p
}

func valueOf(line string) string {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
