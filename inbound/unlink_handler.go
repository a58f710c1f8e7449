package inbound

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/goliatone/go-identity/core"
)

// UnlinkHandler consumes provider unlink notices: the member disconnected
// the app on the provider side, so the social identity is soft-deleted
// and its durable session removed. A later OAuth login reactivates it.
type UnlinkHandler struct {
	Socials  core.SocialStore
	Sessions core.SessionTokenStore
}

func NewUnlinkHandler(socials core.SocialStore, sessions core.SessionTokenStore) *UnlinkHandler {
	return &UnlinkHandler{Socials: socials, Sessions: sessions}
}

func (h *UnlinkHandler) Surface() string { return SurfaceUnlink }

func (h *UnlinkHandler) Handle(ctx context.Context, req Request) (Result, error) {
	if h == nil || h.Socials == nil {
		return Result{}, inboundInternal("inbound: unlink handler is not configured", nil)
	}

	externalID, err := unlinkExternalID(req)
	if err != nil {
		return Result{}, err
	}

	identity, found, err := h.Socials.FindByExternalID(ctx, externalID)
	if err != nil {
		return Result{}, inboundInternal("inbound: social identity lookup failed", map[string]any{
			"provider":    string(req.Provider),
			"external_id": externalID,
		})
	}
	if !found {
		// Redelivered unlink for an identity already gone.
		return Result{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata:   map[string]any{"external_id": externalID, "already_removed": true},
		}, nil
	}

	if _, err := h.Socials.SoftDelete(ctx, externalID); err != nil {
		return Result{}, inboundInternal("inbound: social identity soft delete failed", map[string]any{
			"provider":    string(req.Provider),
			"external_id": externalID,
		})
	}
	if h.Sessions != nil {
		if _, err := h.Sessions.DeleteByPrincipal(ctx, identity.Ref()); err != nil {
			return Result{}, inboundInternal("inbound: session teardown failed", map[string]any{
				"provider":      string(req.Provider),
				"external_id":   externalID,
				"principal_uid": identity.UID,
			})
		}
	}

	return Result{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"external_id":   externalID,
			"principal_uid": identity.UID,
		},
	}, nil
}

func unlinkExternalID(req Request) (string, error) {
	if value := trimAny(req.Metadata["external_id"]); value != "" {
		return value, nil
	}
	if len(req.Body) > 0 {
		var payload struct {
			ExternalID string `json:"external_id"`
			UserID     string `json:"user_id"`
		}
		if err := json.Unmarshal(req.Body, &payload); err == nil {
			if payload.ExternalID != "" {
				return payload.ExternalID, nil
			}
			if payload.UserID != "" {
				return payload.UserID, nil
			}
		}
	}
	return "", inboundBadInput("inbound: unlink notice has no external id", map[string]any{
		"provider": string(req.Provider),
	})
}

var _ Handler = (*UnlinkHandler)(nil)

// SharedSecretVerifier checks the static callback token providers attach
// to app-to-server notices.
type SharedSecretVerifier struct {
	Header string
	Secret string
}

func NewSharedSecretVerifier(header string, secret string) *SharedSecretVerifier {
	return &SharedSecretVerifier{Header: header, Secret: secret}
}

func (v *SharedSecretVerifier) Verify(_ context.Context, req Request) error {
	if v == nil || v.Secret == "" {
		return inboundInternal("inbound: verifier is not configured", nil)
	}
	header := v.Header
	if header == "" {
		header = "x-callback-token"
	}
	if headerValue(req.Headers, header) != v.Secret {
		return fmt.Errorf("inbound: callback token mismatch")
	}
	return nil
}

var _ Verifier = (*SharedSecretVerifier)(nil)
