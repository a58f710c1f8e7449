package transport

import (
	"context"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	KindSOAP = "soap"
	KindGRPC = "grpc"
)

// UnsupportedAdapter answers for surfaces the deployment does not serve.
// Registering it keeps the rejection explicit and diagnosable instead of
// a bare 404.
type UnsupportedAdapter struct {
	kind   string
	reason string
}

func NewUnsupportedAdapter(kind string, reason string) *UnsupportedAdapter {
	return &UnsupportedAdapter{
		kind:   normalizeKind(kind),
		reason: strings.TrimSpace(reason),
	}
}

func (a *UnsupportedAdapter) Kind() string {
	if a == nil {
		return ""
	}
	return a.kind
}

func (a *UnsupportedAdapter) Handle(_ context.Context, _ Request) (Response, error) {
	reason := "surface is not compiled into this deployment"
	kind := ""
	if a != nil {
		kind = a.kind
		if a.reason != "" {
			reason = a.reason
		}
	}
	return errorResponse(transportError(
		"transport: surface not supported: "+reason,
		goerrors.CategoryOperation,
		http.StatusNotImplemented,
		map[string]any{"adapter": kind},
	)), nil
}

var _ Adapter = (*UnsupportedAdapter)(nil)
