package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-identity/core"
	"github.com/uptrace/bun"
)

// SocialIdentityStore persists OAuth-backed principals. The display name is
// the unique reconciliation key; a lost insert race surfaces as created=false
// from CreateIfAbsent rather than a duplicate row.
type SocialIdentityStore struct {
	db *bun.DB
}

func NewSocialIdentityStore(db *bun.DB) (*SocialIdentityStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &SocialIdentityStore{db: db}, nil
}

func (s *SocialIdentityStore) FindByUserName(ctx context.Context, userName string) (core.SocialIdentity, bool, error) {
	if s == nil || s.db == nil {
		return core.SocialIdentity{}, false, fmt.Errorf("sqlstore: social identity store is not configured")
	}
	userName = strings.TrimSpace(userName)
	if userName == "" {
		return core.SocialIdentity{}, false, fmt.Errorf("sqlstore: user name is required")
	}
	return s.findOne(ctx, "?TableAlias.user_name = ?", userName)
}

func (s *SocialIdentityStore) FindByExternalID(ctx context.Context, externalID string) (core.SocialIdentity, bool, error) {
	if s == nil || s.db == nil {
		return core.SocialIdentity{}, false, fmt.Errorf("sqlstore: social identity store is not configured")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return core.SocialIdentity{}, false, fmt.Errorf("sqlstore: external id is required")
	}
	return s.findOne(ctx, "?TableAlias.external_id = ?", externalID)
}

func (s *SocialIdentityStore) FindByUID(ctx context.Context, uid int64) (core.SocialIdentity, bool, error) {
	if s == nil || s.db == nil {
		return core.SocialIdentity{}, false, fmt.Errorf("sqlstore: social identity store is not configured")
	}
	if uid <= 0 {
		return core.SocialIdentity{}, false, fmt.Errorf("sqlstore: social uid is required")
	}
	return s.findOne(ctx, "?TableAlias.uid = ?", uid)
}

func (s *SocialIdentityStore) CreateIfAbsent(ctx context.Context, identity core.SocialIdentity) (core.SocialIdentity, bool, error) {
	if s == nil || s.db == nil {
		return core.SocialIdentity{}, false, fmt.Errorf("sqlstore: social identity store is not configured")
	}
	userName := strings.TrimSpace(identity.UserName)
	if userName == "" {
		return core.SocialIdentity{}, false, fmt.Errorf("sqlstore: user name is required")
	}
	if !identity.Provider.Valid() {
		return core.SocialIdentity{}, false, fmt.Errorf("sqlstore: provider %q is not supported", identity.Provider)
	}

	now := time.Now().UTC()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	role := identity.Role
	if strings.TrimSpace(string(role)) == "" {
		role = core.RoleUser
	}
	status := identity.Status
	if strings.TrimSpace(string(status)) == "" {
		status = core.IdentityActive
	}

	record := &socialIdentityRecord{
		ExternalID: strings.TrimSpace(identity.ExternalID),
		UserName:   userName,
		Email:      strings.TrimSpace(identity.Email),
		Phone:      strings.TrimSpace(identity.Phone),
		Provider:   string(identity.Provider),
		Role:       string(role),
		Status:     string(status),
		CreatedAt:  identity.CreatedAt.UTC(),
		UpdatedAt:  now,
	}
	result, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (user_name) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return core.SocialIdentity{}, false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.SocialIdentity{}, false, err
	}
	if affected == 0 {
		return core.SocialIdentity{}, false, nil
	}

	// Re-read for the assigned uid; CONFLICT DO NOTHING inserts do not
	// reliably report last-insert ids across drivers.
	created, found, err := s.findOne(ctx, "?TableAlias.user_name = ?", userName)
	if err != nil {
		return core.SocialIdentity{}, false, err
	}
	if !found {
		return core.SocialIdentity{}, false, fmt.Errorf("sqlstore: social identity %q vanished after insert", userName)
	}
	return created, true, nil
}

func (s *SocialIdentityStore) Reactivate(ctx context.Context, externalID string) error {
	return s.setStatus(ctx, externalID, core.IdentityActive)
}

func (s *SocialIdentityStore) SoftDelete(ctx context.Context, externalID string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: social identity store is not configured")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return 0, fmt.Errorf("sqlstore: external id is required")
	}

	result, err := s.db.NewUpdate().
		Model((*socialIdentityRecord)(nil)).
		Set("status = ?", string(core.IdentityDeleted)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("external_id = ?", externalID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return affected, nil
}

func (s *SocialIdentityStore) setStatus(ctx context.Context, externalID string, status core.IdentityStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: social identity store is not configured")
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return fmt.Errorf("sqlstore: external id is required")
	}

	result, err := s.db.NewUpdate().
		Model((*socialIdentityRecord)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("external_id = ?", externalID).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("sqlstore: social identity %q not found", externalID)
	}
	return nil
}

func (s *SocialIdentityStore) findOne(ctx context.Context, where string, arg any) (core.SocialIdentity, bool, error) {
	record := &socialIdentityRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where(where, arg).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.SocialIdentity{}, false, nil
		}
		return core.SocialIdentity{}, false, err
	}
	return record.toDomain(), true, nil
}

func (r *socialIdentityRecord) toDomain() core.SocialIdentity {
	if r == nil {
		return core.SocialIdentity{}
	}
	return core.SocialIdentity{
		UID:        r.UID,
		ExternalID: r.ExternalID,
		UserName:   r.UserName,
		Email:      r.Email,
		Phone:      r.Phone,
		Provider:   core.Provider(r.Provider),
		Role:       core.Role(r.Role),
		Status:     core.IdentityStatus(r.Status),
		CreatedAt:  r.CreatedAt,
	}
}
