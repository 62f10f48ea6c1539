// Package mediactx holds process-wide configuration for the external media
// binaries: where ffmpeg and ffprobe live, where temp files go, and which
// optional codecs the local ffmpeg build supports.
package mediactx

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/peelkit/matte/internal/logging"
)

const capabilityTimeout = 10 * time.Second

// Context carries the binary paths and temp-file bookkeeping shared by
// probing, composition, and result fetching. Paths are fixed after
// construction; the capability cache fills in lazily on first query.
type Context struct {
	FFmpegPath  string
	FFprobePath string
	TempDir     string
	Logger      zerolog.Logger

	mu       sync.Mutex
	decoders string
	encoders string
	capProbe bool
	temps    map[string]struct{}
}

// New builds a Context, resolving ffmpeg/ffprobe through PATH when the
// given paths are empty. Missing binaries are not an error here: probing
// degrades and export reports a distinct binary-not-found failure.
func New(ffmpegPath, ffprobePath, tempDir string, logger zerolog.Logger) *Context {
	if ffmpegPath == "" {
		ffmpegPath = lookPathOr("ffmpeg")
	}
	if ffprobePath == "" {
		ffprobePath = lookPathOr("ffprobe")
	}
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	return &Context{
		FFmpegPath:  ffmpegPath,
		FFprobePath: ffprobePath,
		TempDir:     tempDir,
		Logger:      logging.WithComponent(logger, "mediactx"),
		temps:       make(map[string]struct{}),
	}
}

func lookPathOr(name string) string {
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	return name
}

var (
	currentMu sync.Mutex
	current   *Context
)

// Current returns the process-wide context, creating a default one on first
// use.
func Current() *Context {
	currentMu.Lock()
	defer currentMu.Unlock()
	if current == nil {
		current = New("", "", "", log.Logger)
	}
	return current
}

// SetCurrent replaces the process-wide context. Passing nil resets to the
// lazily-created default.
func SetCurrent(c *Context) {
	currentMu.Lock()
	current = c
	currentMu.Unlock()
}

// HasDecoder reports whether the local ffmpeg build ships the named decoder
// (e.g. "libvpx-vp9"). The decoder list is probed once and cached.
func (c *Context) HasDecoder(name string) bool {
	c.probeCapabilities()
	return capListed(c.decoders, name)
}

// HasEncoder reports whether the local ffmpeg build ships the named encoder.
func (c *Context) HasEncoder(name string) bool {
	c.probeCapabilities()
	return capListed(c.encoders, name)
}

func (c *Context) probeCapabilities() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.capProbe {
		return
	}
	c.capProbe = true

	c.decoders = c.runCapability("-decoders")
	c.encoders = c.runCapability("-encoders")
}

func (c *Context) runCapability(flag string) string {
	ctx, cancel := context.WithTimeout(context.Background(), capabilityTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, c.FFmpegPath, "-hide_banner", flag).Output()
	if err != nil {
		c.Logger.Debug().Err(err).Str("flag", flag).Msg("capability probe failed")
		return ""
	}
	return string(out)
}

// capList output has one codec per line: " V..... name  description".
func capListed(listing, name string) bool {
	for _, line := range strings.Split(listing, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[1] == name {
			return true
		}
	}
	return false
}

// TempPath returns a fresh uniquely-named path under the temp root and
// registers it for cleanup. The file is not created.
func (c *Context) TempPath(pattern string) string {
	name := strings.Replace(pattern, "*", uuid.NewString(), 1)
	if !strings.Contains(pattern, "*") {
		name = pattern + "-" + uuid.NewString()
	}
	path := filepath.Join(c.TempDir, name)
	c.RegisterTemp(path)
	return path
}

// RegisterTemp records a temp file or directory for later cleanup.
func (c *Context) RegisterTemp(path string) {
	c.mu.Lock()
	c.temps[path] = struct{}{}
	c.mu.Unlock()
}

// Cleanup removes every registered temp file. Best effort; removal errors
// are logged and dropped.
func (c *Context) Cleanup() {
	c.mu.Lock()
	paths := make([]string, 0, len(c.temps))
	for p := range c.temps {
		paths = append(paths, p)
	}
	c.temps = make(map[string]struct{})
	c.mu.Unlock()

	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			c.Logger.Debug().Err(err).Str("path", p).Msg("temp cleanup failed")
		}
	}
}

// Scope tracks temp files created during a single export pass so they can be
// cleaned on every exit path of that export without touching files owned by
// longer-lived objects.
type Scope struct {
	ctx   *Context
	mu    sync.Mutex
	paths []string
}

// NewScope opens a per-export temp manifest.
func (c *Context) NewScope() *Scope {
	return &Scope{ctx: c}
}

// Register adds a path to the scope manifest.
func (s *Scope) Register(path string) {
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()
}

// TempPath allocates a scope-owned temp path under the context's temp root.
func (s *Scope) TempPath(pattern string) string {
	name := strings.Replace(pattern, "*", uuid.NewString(), 1)
	if !strings.Contains(pattern, "*") {
		name = pattern + "-" + uuid.NewString()
	}
	path := filepath.Join(s.ctx.TempDir, name)
	s.Register(path)
	return path
}

// Close removes everything registered in the scope.
func (s *Scope) Close() {
	s.mu.Lock()
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			s.ctx.Logger.Debug().Err(err).Str("path", p).Msg("scope cleanup failed")
		}
	}
}
