// Package gologger composes the go-logger surface the identity service
// consumes: resolving a provider/logger pair and turning it into the
// option set core.NewService expects.
package gologger

import (
	"github.com/goliatone/go-identity/core"
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// Named returns a child logger from the provider, nop when the provider
// is absent or hands back nil.
func Named(provider glog.LoggerProvider, name string) glog.Logger {
	if provider == nil {
		return glog.Nop()
	}
	return glog.Ensure(provider.GetLogger(name))
}

// CoreOptions resolves the pair under the given component name and
// returns the logging options for core.NewService.
func CoreOptions(name string, provider glog.LoggerProvider, logger glog.Logger) []core.Option {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	return []core.Option{
		core.WithLoggerProvider(resolvedProvider),
		core.WithLogger(resolvedLogger),
	}
}
