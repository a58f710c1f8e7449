package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-identity/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SessionTokenStore keeps the durable token pair per principal. At most one
// row exists per (principal_kind, principal_uid); Upsert rewrites the pair in
// place instead of accumulating history.
type SessionTokenStore struct {
	db   *bun.DB
	repo repository.Repository[*sessionTokenRecord]
}

func NewSessionTokenStore(db *bun.DB) (*SessionTokenStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*sessionTokenRecord](db, sessionTokenHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid session token repository wiring: %w", err)
		}
	}
	return &SessionTokenStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *SessionTokenStore) Upsert(ctx context.Context, ref core.PrincipalRef, accessToken string, refreshToken string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: session token store is not configured")
	}
	if err := ref.Validate(); err != nil {
		return err
	}
	accessToken = strings.TrimSpace(accessToken)
	refreshToken = strings.TrimSpace(refreshToken)
	if accessToken == "" || refreshToken == "" {
		return fmt.Errorf("sqlstore: access and refresh tokens are required")
	}

	now := time.Now().UTC()
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findSessionTokenTx(ctx, tx, ref)
		if err != nil {
			return err
		}
		created := false
		if record == nil {
			created = true
			record = &sessionTokenRecord{
				ID:            uuid.NewString(),
				PrincipalKind: string(ref.Kind),
				PrincipalUID:  ref.UID,
				CreatedAt:     now,
			}
		}
		record.AccessToken = accessToken
		record.RefreshToken = refreshToken
		record.UpdatedAt = now

		if created {
			if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
				return insertErr
			}
			return nil
		}
		if _, updateErr := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx); updateErr != nil {
			return updateErr
		}
		return nil
	})
}

func (s *SessionTokenStore) FindByPrincipal(ctx context.Context, ref core.PrincipalRef) (core.Session, bool, error) {
	if s == nil || s.repo == nil {
		return core.Session{}, false, fmt.Errorf("sqlstore: session token store is not configured")
	}
	if err := ref.Validate(); err != nil {
		return core.Session{}, false, err
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("principal_kind", "=", string(ref.Kind)),
		repository.SelectBy("principal_uid", "=", strconv.FormatInt(ref.UID, 10)),
	)
	if err != nil {
		return core.Session{}, false, err
	}
	if len(records) == 0 {
		return core.Session{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *SessionTokenStore) FindByToken(ctx context.Context, token string) (core.Session, bool, error) {
	if s == nil || s.repo == nil {
		return core.Session{}, false, fmt.Errorf("sqlstore: session token store is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return core.Session{}, false, fmt.Errorf("sqlstore: token is required")
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.access_token = ? OR ?TableAlias.refresh_token = ?", token, token)
		}),
	)
	if err != nil {
		return core.Session{}, false, err
	}
	if len(records) == 0 {
		return core.Session{}, false, nil
	}
	return records[0].toDomain(), true, nil
}

func (s *SessionTokenStore) DeleteByPrincipal(ctx context.Context, ref core.PrincipalRef) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: session token store is not configured")
	}
	if err := ref.Validate(); err != nil {
		return 0, err
	}

	result, err := s.db.NewDelete().
		Model((*sessionTokenRecord)(nil)).
		Where("principal_kind = ?", string(ref.Kind)).
		Where("principal_uid = ?", ref.UID).
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

func findSessionTokenTx(ctx context.Context, tx bun.Tx, ref core.PrincipalRef) (*sessionTokenRecord, error) {
	record := &sessionTokenRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.principal_kind = ?", string(ref.Kind)).
		Where("?TableAlias.principal_uid = ?", ref.UID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func (r *sessionTokenRecord) toDomain() core.Session {
	if r == nil {
		return core.Session{}
	}
	return core.Session{
		Principal: core.PrincipalRef{
			Kind: core.PrincipalKind(r.PrincipalKind),
			UID:  r.PrincipalUID,
		},
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		UpdatedAt:    r.UpdatedAt,
	}
}
