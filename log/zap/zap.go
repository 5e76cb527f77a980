// Package zap adapts go.uber.org/zap to rowcache.Logger.
package zap

import (
	"sort"

	"go.uber.org/zap"

	"github.com/unkn0wn-root/rowcache"
)

var _ rowcache.Logger = ZapLogger{}

type ZapLogger struct{ L *zap.Logger }

// New names the logger "rowcache".
func New(l *zap.Logger) ZapLogger { return ZapLogger{L: l.Named("rowcache")} }

func (z ZapLogger) Debug(msg string, f rowcache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f rowcache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f rowcache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f rowcache.Fields) { z.L.Error(msg, zf(f)...) }

// zf emits fields in key order; errors use zap's error encoder.
func zf(f rowcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(f))
	for _, k := range keys {
		if err, ok := f[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, f[k]))
	}
	return out
}
