package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotKey is the write-ahead snapshot key for a principal's profile
// pre-image: snapshot:<entity>:<uid>.
func SnapshotKey(ref PrincipalRef) string {
	return fmt.Sprintf("snapshot:%s:%d", ref.Kind, ref.UID)
}

type NotifyFunc func(ctx context.Context) error

type ProfileSagaOption func(*ProfileSaga)

func WithSnapshotTTL(ttl time.Duration) ProfileSagaOption {
	return func(s *ProfileSaga) {
		if s == nil || ttl <= 0 {
			return
		}
		s.snapshotTTL = ttl
	}
}

func WithSagaLogger(logger Logger) ProfileSagaOption {
	return func(s *ProfileSaga) {
		if s == nil || logger == nil {
			return
		}
		s.logger = logger
	}
}

// ProfileSaga keeps the profile store and an external enrichment call
// consistent without a distributed transaction: it snapshots the pre-image
// into the session cache, applies the durable mutation, invokes the
// notification, and rolls the mutation back if the notification fails.
type ProfileSaga struct {
	cache       SessionCache
	profiles    ProfileStore
	logger      Logger
	snapshotTTL time.Duration
}

func NewProfileSaga(cache SessionCache, profiles ProfileStore, opts ...ProfileSagaOption) (*ProfileSaga, error) {
	if cache == nil {
		return nil, fmt.Errorf("core: session cache is required")
	}
	if profiles == nil {
		return nil, fmt.Errorf("core: profile store is required")
	}
	saga := &ProfileSaga{
		cache:       cache,
		profiles:    profiles,
		snapshotTTL: 30 * time.Minute,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(saga)
		}
	}
	return saga, nil
}

// MutateThenNotify applies the profile mutation and then the enrichment
// call, with compensation. Ordering is load-bearing: the snapshot write
// completes before the durable mutation, and the mutation completes before
// notify runs. When notify fails the durable state is restored from the
// snapshot and the failure is surfaced as a non-fatal warning; the
// mutation result the caller sees is whatever the durable write returned.
// An empty payload skips snapshot and notify entirely.
func (s *ProfileSaga) MutateThenNotify(
	ctx context.Context,
	ref PrincipalRef,
	profile Profile,
	address Address,
	payload AllergyPayload,
	notify NotifyFunc,
) error {
	if s == nil || s.cache == nil || s.profiles == nil {
		return fmt.Errorf("core: profile saga is not configured")
	}
	if err := ref.Validate(); err != nil {
		return err
	}

	localOnly := payload.Empty() || notify == nil
	if !localOnly {
		if err := s.begin(ctx, ref); err != nil {
			return err
		}
	}

	if err := s.profiles.ApplyUpdate(ctx, ref, profile, address); err != nil {
		if !localOnly {
			// The mutation never happened; the snapshot is stale
			// but harmless and will expire on its own.
			_, _ = s.cache.Delete(ctx, SnapshotKey(ref))
		}
		return fmt.Errorf("core: apply profile update: %w", err)
	}

	if localOnly {
		return nil
	}

	if err := notify(ctx); err != nil {
		s.rollback(ctx, ref, err)
		return nil
	}

	s.commit(ctx, ref)
	return nil
}

// begin captures the pre-mutation profile and address in the cache under
// the principal's snapshot key. The key is deterministic, so a retry
// overwrites rather than duplicates.
func (s *ProfileSaga) begin(ctx context.Context, ref PrincipalRef) error {
	snapshot, err := s.profiles.ReadCurrent(ctx, ref)
	if err != nil {
		return fmt.Errorf("core: read profile pre-image: %w", err)
	}
	snapshot.Principal = ref

	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("core: encode profile snapshot: %w", err)
	}
	if err := s.cache.Set(ctx, SnapshotKey(ref), string(encoded), s.snapshotTTL); err != nil {
		return fmt.Errorf("core: write profile snapshot: %w", err)
	}
	return nil
}

func (s *ProfileSaga) commit(ctx context.Context, ref PrincipalRef) {
	if _, err := s.cache.Delete(ctx, SnapshotKey(ref)); err != nil {
		s.logError(ctx, "snapshot delete after commit failed", map[string]any{
			"principal_kind": string(ref.Kind),
			"principal_uid":  ref.UID,
			"error":          err.Error(),
		})
	}
}

// rollback restores the durable profile from the cached pre-image. A
// failure here is the one unrecoverable condition in this core: the
// durable store and the snapshot are left indeterminate, so it is logged
// at error severity and no further automatic action is taken.
func (s *ProfileSaga) rollback(ctx context.Context, ref PrincipalRef, cause error) {
	fields := map[string]any{
		"principal_kind": string(ref.Kind),
		"principal_uid":  ref.UID,
		"notify_error":   cause.Error(),
	}

	raw, found, err := s.cache.Get(ctx, SnapshotKey(ref))
	if err != nil || !found {
		fields["text_code"] = AuthErrorCompensationFailed
		if err != nil {
			fields["snapshot_error"] = err.Error()
		}
		s.logError(ctx, "profile rollback failed: snapshot unavailable", fields)
		return
	}

	snapshot := ProfileSnapshot{}
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		fields["text_code"] = AuthErrorCompensationFailed
		fields["snapshot_error"] = err.Error()
		s.logError(ctx, "profile rollback failed: snapshot corrupt", fields)
		return
	}

	if err := s.profiles.Restore(ctx, snapshot); err != nil {
		fields["text_code"] = AuthErrorCompensationFailed
		fields["restore_error"] = err.Error()
		s.logError(ctx, "profile rollback failed: restore did not complete", fields)
		return
	}

	if _, err := s.cache.Delete(ctx, SnapshotKey(ref)); err != nil {
		fields["snapshot_error"] = err.Error()
	}
	s.logWarn(ctx, "enrichment notify failed; profile restored to pre-image", fields)
}

func (s *ProfileSaga) logWarn(ctx context.Context, message string, fields map[string]any) {
	s.log(ctx, "warn", message, fields)
}

func (s *ProfileSaga) logError(ctx context.Context, message string, fields map[string]any) {
	s.log(ctx, "error", message, fields)
}

func (s *ProfileSaga) log(ctx context.Context, level string, message string, fields map[string]any) {
	if s == nil || s.logger == nil {
		return
	}
	logger := s.logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(FieldsLogger); ok {
		logger = fieldsLogger.WithFields(fields)
	}
	switch level {
	case "error":
		logger.Error(message)
	default:
		logger.Warn(message)
	}
}
