package query

import (
	"context"

	"github.com/goliatone/go-identity/core"
)

type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) core.ValidationCode
}

type UserReader interface {
	UserInfo(ctx context.Context, token string) (core.UserInfo, error)
	UserProfile(ctx context.Context, token string) (core.ProfileView, error)
}

type ManagerReader interface {
	Managers(ctx context.Context) ([]core.LocalUser, error)
}

type ValidateTokenQuery struct {
	validator TokenValidator
}

func NewValidateTokenQuery(validator TokenValidator) *ValidateTokenQuery {
	return &ValidateTokenQuery{validator: validator}
}

func (q *ValidateTokenQuery) Query(ctx context.Context, msg ValidateTokenMessage) (core.ValidationCode, error) {
	if q == nil || q.validator == nil {
		return core.ValidationMissing, queryDependencyError("query: token validator is required")
	}
	return q.validator.ValidateToken(ctx, msg.Token), nil
}

type UserInfoQuery struct {
	reader UserReader
}

func NewUserInfoQuery(reader UserReader) *UserInfoQuery {
	return &UserInfoQuery{reader: reader}
}

func (q *UserInfoQuery) Query(ctx context.Context, msg UserInfoMessage) (core.UserInfo, error) {
	if q == nil || q.reader == nil {
		return core.UserInfo{}, queryDependencyError("query: user reader is required")
	}
	return q.reader.UserInfo(ctx, msg.Token)
}

type UserProfileQuery struct {
	reader UserReader
}

func NewUserProfileQuery(reader UserReader) *UserProfileQuery {
	return &UserProfileQuery{reader: reader}
}

func (q *UserProfileQuery) Query(ctx context.Context, msg UserProfileMessage) (core.ProfileView, error) {
	if q == nil || q.reader == nil {
		return core.ProfileView{}, queryDependencyError("query: user reader is required")
	}
	return q.reader.UserProfile(ctx, msg.Token)
}

type ManagersQuery struct {
	reader ManagerReader
}

func NewManagersQuery(reader ManagerReader) *ManagersQuery {
	return &ManagersQuery{reader: reader}
}

func (q *ManagersQuery) Query(ctx context.Context, _ ManagersMessage) ([]core.LocalUser, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: manager reader is required")
	}
	return q.reader.Managers(ctx)
}
