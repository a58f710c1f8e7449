// Package auth holds the outbound credential strategies the identity
// service uses when it calls third-party APIs on its own behalf: the
// enrichment endpoint, provider admin APIs for unlink and revocation,
// and webhook targets fronted by signed gateways. Each strategy knows
// how to mint or look up its credential and stamp it onto an outgoing
// request.
package auth

import (
	"context"
	"net/http"
)

const (
	KindAPIKey            = "api_key"
	KindHMAC              = "hmac"
	KindBasic             = "basic"
	KindClientCredentials = "oauth2_client_credentials"
	KindClientAssertion   = "client_assertion_jwt"
	KindSigV4             = "aws_sigv4"
)

// Strategy authorizes one outbound request. Implementations are safe for
// concurrent use.
type Strategy interface {
	Kind() string
	Authorize(ctx context.Context, req *http.Request) error
}
