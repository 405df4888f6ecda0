// Package emulog is a thin wrapper over go.uber.org/zap used for the
// linker, bus, MMU and CPU's diagnostic tracing. A nil *Logger is
// valid and logs nothing, mirroring the teacher's "nil debugSym/debugOut
// means feature off" convention (vm/vm.go NewVirtualMachine) instead of
// forcing every caller to hold a real zap logger.
package emulog

import "go.uber.org/zap"

type Logger struct {
	z *zap.Logger
}

// New wraps z. A nil z is valid and produces a Logger whose methods are
// no-ops.
func New(z *zap.Logger) *Logger {
	return &Logger{z: z}
}

// Noop returns a Logger that discards everything, the default used
// whenever a caller passes nil instead of a configured Logger.
func Noop() *Logger {
	return &Logger{z: zap.NewNop()}
}

func (l *Logger) sugar() *zap.Logger {
	if l == nil || l.z == nil {
		return zap.NewNop()
	}
	return l.z
}

func (l *Logger) Debugw(msg string, kv ...any) { l.sugar().Sugar().Debugw(msg, kv...) }
func (l *Logger) Infow(msg string, kv ...any)   { l.sugar().Sugar().Infow(msg, kv...) }
func (l *Logger) Warnw(msg string, kv ...any)   { l.sugar().Sugar().Warnw(msg, kv...) }
func (l *Logger) Errorw(msg string, kv ...any)  { l.sugar().Sugar().Errorw(msg, kv...) }

// Sync flushes any buffered log entries; callers ignore the error the
// way zap's own examples do for stdout-backed loggers.
func (l *Logger) Sync() error {
	if l == nil || l.z == nil {
		return nil
	}
	return l.z.Sync()
}
