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

// UserStore persists locally-registered accounts. Lookups key on the
// caller-chosen user id; the numeric uid is assigned on insert.
type UserStore struct {
	db *bun.DB
}

func NewUserStore(db *bun.DB) (*UserStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &UserStore{db: db}, nil
}

func (s *UserStore) FindByUserID(ctx context.Context, userID string) (core.LocalUser, bool, error) {
	if s == nil || s.db == nil {
		return core.LocalUser{}, false, fmt.Errorf("sqlstore: user store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return core.LocalUser{}, false, fmt.Errorf("sqlstore: user id is required")
	}

	record := &userRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.LocalUser{}, false, nil
		}
		return core.LocalUser{}, false, err
	}
	return record.toDomain(), true, nil
}

func (s *UserStore) FindByUID(ctx context.Context, uid int64) (core.LocalUser, bool, error) {
	if s == nil || s.db == nil {
		return core.LocalUser{}, false, fmt.Errorf("sqlstore: user store is not configured")
	}
	if uid <= 0 {
		return core.LocalUser{}, false, fmt.Errorf("sqlstore: user uid is required")
	}

	record := &userRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.uid = ?", uid).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.LocalUser{}, false, nil
		}
		return core.LocalUser{}, false, err
	}
	return record.toDomain(), true, nil
}

func (s *UserStore) Create(ctx context.Context, user core.LocalUser, passwordHash string) (core.LocalUser, error) {
	if s == nil || s.db == nil {
		return core.LocalUser{}, fmt.Errorf("sqlstore: user store is not configured")
	}
	if strings.TrimSpace(user.UserID) == "" {
		return core.LocalUser{}, fmt.Errorf("sqlstore: user id is required")
	}
	if strings.TrimSpace(passwordHash) == "" {
		return core.LocalUser{}, fmt.Errorf("sqlstore: password hash is required")
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	role := user.Role
	if strings.TrimSpace(string(role)) == "" {
		role = core.RoleUser
	}

	record := &userRecord{
		UserID:       strings.TrimSpace(user.UserID),
		UserName:     strings.TrimSpace(user.UserName),
		Email:        strings.TrimSpace(user.Email),
		Phone:        strings.TrimSpace(user.Phone),
		Role:         string(role),
		PasswordHash: passwordHash,
		CreatedAt:    user.CreatedAt.UTC(),
		UpdatedAt:    now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.LocalUser{}, err
	}
	return record.toDomain(), nil
}

func (s *UserStore) PasswordHash(ctx context.Context, userID string) (string, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("sqlstore: user store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", fmt.Errorf("sqlstore: user id is required")
	}

	var hash string
	err := s.db.NewSelect().
		Model((*userRecord)(nil)).
		Column("password_hash").
		Where("?TableAlias.user_id = ?", userID).
		Limit(1).
		Scan(ctx, &hash)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("sqlstore: user %q not found", userID)
		}
		return "", err
	}
	return hash, nil
}

func (s *UserStore) Delete(ctx context.Context, userID string) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: user store is not configured")
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, fmt.Errorf("sqlstore: user id is required")
	}

	result, err := s.db.NewDelete().
		Model((*userRecord)(nil)).
		Where("user_id = ?", userID).
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

func (s *UserStore) Managers(ctx context.Context) ([]core.LocalUser, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: user store is not configured")
	}

	records := []*userRecord{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.role = ?", string(core.RoleManager)).
		OrderExpr("?TableAlias.uid ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]core.LocalUser, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (r *userRecord) toDomain() core.LocalUser {
	if r == nil {
		return core.LocalUser{}
	}
	return core.LocalUser{
		UID:       r.UID,
		UserID:    r.UserID,
		UserName:  r.UserName,
		Email:     r.Email,
		Phone:     r.Phone,
		Role:      core.Role(r.Role),
		CreatedAt: r.CreatedAt,
	}
}
