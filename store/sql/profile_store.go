package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goliatone/go-identity/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProfileStore keeps the profile/address pair per principal. Both rows are
// rewritten atomically so a snapshot restore never leaves the pair split
// across two states.
type ProfileStore struct {
	db          *bun.DB
	profileRepo repository.Repository[*profileRecord]
	addressRepo repository.Repository[*addressRecord]
}

func NewProfileStore(db *bun.DB) (*ProfileStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	profileRepo := repository.NewRepository[*profileRecord](db, profileHandlers())
	if validator, ok := profileRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid profile repository wiring: %w", err)
		}
	}
	addressRepo := repository.NewRepository[*addressRecord](db, addressHandlers())
	if validator, ok := addressRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid address repository wiring: %w", err)
		}
	}
	return &ProfileStore{
		db:          db,
		profileRepo: profileRepo,
		addressRepo: addressRepo,
	}, nil
}

func (s *ProfileStore) ReadCurrent(ctx context.Context, ref core.PrincipalRef) (core.ProfileSnapshot, error) {
	if s == nil || s.db == nil {
		return core.ProfileSnapshot{}, fmt.Errorf("sqlstore: profile store is not configured")
	}
	if err := ref.Validate(); err != nil {
		return core.ProfileSnapshot{}, err
	}

	snapshot := core.ProfileSnapshot{Principal: ref}

	profile := &profileRecord{}
	err := s.db.NewSelect().
		Model(profile).
		Where("?TableAlias.principal_kind = ?", string(ref.Kind)).
		Where("?TableAlias.principal_uid = ?", ref.UID).
		Limit(1).
		Scan(ctx)
	switch {
	case err == nil:
		snapshot.Profile = profile.toDomain()
	case err == sql.ErrNoRows:
	default:
		return core.ProfileSnapshot{}, err
	}

	address := &addressRecord{}
	err = s.db.NewSelect().
		Model(address).
		Where("?TableAlias.principal_kind = ?", string(ref.Kind)).
		Where("?TableAlias.principal_uid = ?", ref.UID).
		Limit(1).
		Scan(ctx)
	switch {
	case err == nil:
		snapshot.Address = address.toDomain()
	case err == sql.ErrNoRows:
	default:
		return core.ProfileSnapshot{}, err
	}

	return snapshot, nil
}

func (s *ProfileStore) ApplyUpdate(ctx context.Context, ref core.PrincipalRef, profile core.Profile, address core.Address) error {
	return s.writePair(ctx, ref, profile, address)
}

func (s *ProfileStore) UpdateAddress(ctx context.Context, ref core.PrincipalRef, address core.Address) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: profile store is not configured")
	}
	if err := ref.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return upsertAddressTx(ctx, tx, ref, address, now)
	})
}

func (s *ProfileStore) Restore(ctx context.Context, snapshot core.ProfileSnapshot) error {
	return s.writePair(ctx, snapshot.Principal, snapshot.Profile, snapshot.Address)
}

func (s *ProfileStore) writePair(ctx context.Context, ref core.PrincipalRef, profile core.Profile, address core.Address) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: profile store is not configured")
	}
	if err := ref.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := upsertProfileTx(ctx, tx, ref, profile, now); err != nil {
			return err
		}
		return upsertAddressTx(ctx, tx, ref, address, now)
	})
}

func upsertProfileTx(ctx context.Context, tx bun.Tx, ref core.PrincipalRef, profile core.Profile, now time.Time) error {
	record := &profileRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.principal_kind = ?", string(ref.Kind)).
		Where("?TableAlias.principal_uid = ?", ref.UID).
		Limit(1).
		Scan(ctx)
	created := false
	if err != nil {
		if err != sql.ErrNoRows {
			return err
		}
		created = true
		record = &profileRecord{
			ID:            uuid.NewString(),
			PrincipalKind: string(ref.Kind),
			PrincipalUID:  ref.UID,
			CreatedAt:     now,
		}
	}
	record.UserName = profile.UserName
	record.Email = profile.Email
	record.EmailYN = profile.EmailYN
	record.Phone = profile.Phone
	record.PhoneYN = profile.PhoneYN
	record.UpdatedAt = now

	if created {
		_, err = tx.NewInsert().Model(record).Exec(ctx)
		return err
	}
	_, err = tx.NewUpdate().
		Model(record).
		Where("id = ?", record.ID).
		Exec(ctx)
	return err
}

func upsertAddressTx(ctx context.Context, tx bun.Tx, ref core.PrincipalRef, address core.Address, now time.Time) error {
	record := &addressRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.principal_kind = ?", string(ref.Kind)).
		Where("?TableAlias.principal_uid = ?", ref.UID).
		Limit(1).
		Scan(ctx)
	created := false
	if err != nil {
		if err != sql.ErrNoRows {
			return err
		}
		created = true
		record = &addressRecord{
			ID:            uuid.NewString(),
			PrincipalKind: string(ref.Kind),
			PrincipalUID:  ref.UID,
			CreatedAt:     now,
		}
	}
	record.MainAddress = address.MainAddress
	record.MainLat = address.MainLat
	record.MainLan = address.MainLan
	record.SubAddress1 = address.SubAddress1
	record.Sub1Lat = address.Sub1Lat
	record.Sub1Lan = address.Sub1Lan
	record.SubAddress2 = address.SubAddress2
	record.Sub2Lat = address.Sub2Lat
	record.Sub2Lan = address.Sub2Lan
	record.UpdatedAt = now

	if created {
		_, err = tx.NewInsert().Model(record).Exec(ctx)
		return err
	}
	_, err = tx.NewUpdate().
		Model(record).
		Where("id = ?", record.ID).
		Exec(ctx)
	return err
}

func (r *profileRecord) toDomain() core.Profile {
	if r == nil {
		return core.Profile{}
	}
	return core.Profile{
		UserName: r.UserName,
		Email:    r.Email,
		EmailYN:  r.EmailYN,
		Phone:    r.Phone,
		PhoneYN:  r.PhoneYN,
	}
}

func (r *addressRecord) toDomain() core.Address {
	if r == nil {
		return core.Address{}
	}
	return core.Address{
		MainAddress: r.MainAddress,
		MainLat:     r.MainLat,
		MainLan:     r.MainLan,
		SubAddress1: r.SubAddress1,
		Sub1Lat:     r.Sub1Lat,
		Sub1Lan:     r.Sub1Lan,
		SubAddress2: r.SubAddress2,
		Sub2Lat:     r.Sub2Lat,
		Sub2Lan:     r.Sub2Lan,
	}
}
