package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

const defaultBufferSize = 1000

// Logger is the subset of *slog.Logger that packages depend on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// registry owns the module levels and the current output chain.
type registry struct {
	mu       sync.RWMutex
	config   Config
	global   slog.LevelVar
	modules  map[string]*moduleEntry
	buffer   *RingBuffer
	callback LogCallback

	// outputs is swapped by Initialize; gen tells module handlers to rebuild.
	outputs atomic.Pointer[slog.Handler]
	gen     atomic.Uint64
}

type moduleEntry struct {
	logger *slog.Logger
	level  *slog.LevelVar
}

var reg = newRegistry()

func newRegistry() *registry {
	r := &registry{modules: make(map[string]*moduleEntry)}
	r.setOutputs(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return r
}

func (r *registry) setOutputs(h slog.Handler) {
	r.outputs.Store(&h)
	r.gen.Add(1)
}

// levelForLocked resolves a module level: module override, then global,
// then info.
func (r *registry) levelForLocked(module string) slog.Level {
	if l, ok := parseLevel(r.config.Modules[module]); ok {
		return l
	}
	if l, ok := parseLevel(r.config.Level); ok {
		return l
	}
	return slog.LevelInfo
}

// Initialize applies config, creates the log history buffer and switches
// every logger, including ones created earlier, to the configured outputs.
func Initialize(config Config) {
	reg.mu.Lock()
	reg.config = config
	reg.buffer = NewRingBuffer(defaultBufferSize)
	reg.global.Set(reg.levelForLocked(""))
	for name, m := range reg.modules {
		m.level.Set(reg.levelForLocked(name))
	}
	reg.mu.Unlock()

	reg.setOutputs(buildOutputs(config.Format))
	slog.SetDefault(slog.New(&moduleHandler{level: &reg.global}))
}

// GetBuffer returns the log history, nil before Initialize.
func GetBuffer() *RingBuffer {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.buffer
}

// SetLogCallback registers a function called with every buffered entry.
// The daemon uses it to publish log events.
func SetLogCallback(callback LogCallback) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.callback = callback
}

// GetLogger returns the logger for module. The same logger is returned on
// every call; its level follows Initialize and SetModuleLevel.
func GetLogger(module string) *slog.Logger {
	reg.mu.RLock()
	m, ok := reg.modules[module]
	reg.mu.RUnlock()
	if ok {
		return m.logger
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if m, ok := reg.modules[module]; ok {
		return m.logger
	}

	level := &slog.LevelVar{}
	level.Set(reg.levelForLocked(module))
	m = &moduleEntry{
		logger: slog.New(&moduleHandler{level: level}).With("module", module),
		level:  level,
	}
	reg.modules[module] = m
	return m.logger
}

// moduleHandler gates records by a module level and hands them to the
// current outputs. Attributes and groups are replayed onto the outputs
// whenever Initialize replaces them.
type moduleHandler struct {
	level *slog.LevelVar
	apply []func(slog.Handler) slog.Handler
	cache atomic.Pointer[builtHandler]
}

type builtHandler struct {
	gen uint64
	h   slog.Handler
}

func (h *moduleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *moduleHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.current().Handle(ctx, r)
}

func (h *moduleHandler) current() slog.Handler {
	gen := reg.gen.Load()
	if b := h.cache.Load(); b != nil && b.gen == gen {
		return b.h
	}
	out := *reg.outputs.Load()
	for _, fn := range h.apply {
		out = fn(out)
	}
	h.cache.Store(&builtHandler{gen: gen, h: out})
	return out
}

func (h *moduleHandler) derive(fn func(slog.Handler) slog.Handler) *moduleHandler {
	return &moduleHandler{
		level: h.level,
		apply: append(h.apply[:len(h.apply):len(h.apply)], fn),
	}
}

func (h *moduleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	return h.derive(func(out slog.Handler) slog.Handler { return out.WithAttrs(attrs) })
}

func (h *moduleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return h.derive(func(out slog.Handler) slog.Handler { return out.WithGroup(name) })
}

// buildOutputs returns stdout, journald and the history buffer, whichever
// are present. Levels are enforced by moduleHandler.
func buildOutputs(format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}

	var outputs []slog.Handler
	if stdoutConnected() {
		if format == "json" {
			outputs = append(outputs, slog.NewJSONHandler(os.Stdout, opts))
		} else {
			outputs = append(outputs, slog.NewTextHandler(os.Stdout, opts))
		}
	}
	if IsJournalAvailable() {
		outputs = append(outputs, NewJournalHandler(slog.LevelDebug))
	}
	outputs = append(outputs, NewBufferHandler(slog.LevelDebug))

	if len(outputs) == 1 {
		return outputs[0]
	}
	return newFanout(outputs...)
}

// stdoutConnected is false when stdout is /dev/null or closed, as under a
// systemd unit with StandardOutput=null.
func stdoutConnected() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	if mode.IsRegular() {
		return true
	}
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0
}

// parseLevel maps a level name to a slog level. It is case insensitive
// and accepts "warning" for warn.
func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	}
	return 0, false
}

// SetModuleLevel changes the level of one module at runtime. The empty
// module name changes the global level and every module without an override.
func SetModuleLevel(module, level string) error {
	parsed, ok := parseLevel(level)
	if !ok {
		return fmt.Errorf("invalid log level %q", level)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if module == "" {
		reg.config.Level = level
		reg.global.Set(parsed)
		for name, m := range reg.modules {
			if _, override := reg.config.Modules[name]; !override {
				m.level.Set(parsed)
			}
		}
		return nil
	}

	if reg.config.Modules == nil {
		reg.config.Modules = make(map[string]string)
	}
	reg.config.Modules[module] = level
	if m, ok := reg.modules[module]; ok {
		m.level.Set(parsed)
	}
	return nil
}

// ModuleLevels returns the current level of every module logger created so far.
func ModuleLevels() map[string]string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	levels := make(map[string]string, len(reg.modules))
	for name, m := range reg.modules {
		levels[name] = levelToString(m.level.Level())
	}
	return levels
}
