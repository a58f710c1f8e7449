package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type userRecord struct {
	bun.BaseModel `bun:"table:auth_users,alias:au"`

	UID          int64     `bun:"uid,pk,autoincrement"`
	UserID       string    `bun:"user_id,notnull"`
	UserName     string    `bun:"user_name,notnull"`
	Email        string    `bun:"email"`
	Phone        string    `bun:"phone"`
	Role         string    `bun:"role,notnull"`
	PasswordHash string    `bun:"password_hash,notnull"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type socialIdentityRecord struct {
	bun.BaseModel `bun:"table:auth_social_identities,alias:asi"`

	UID        int64     `bun:"uid,pk,autoincrement"`
	ExternalID string    `bun:"external_id,notnull"`
	UserName   string    `bun:"user_name,notnull"`
	Email      string    `bun:"email"`
	Phone      string    `bun:"phone"`
	Provider   string    `bun:"provider,notnull"`
	Role       string    `bun:"role,notnull"`
	Status     string    `bun:"status,notnull"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type sessionTokenRecord struct {
	bun.BaseModel `bun:"table:auth_sessions,alias:ase"`

	ID            string    `bun:"id,pk"`
	PrincipalKind string    `bun:"principal_kind,notnull"`
	PrincipalUID  int64     `bun:"principal_uid,notnull"`
	AccessToken   string    `bun:"access_token,notnull"`
	RefreshToken  string    `bun:"refresh_token,notnull"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type profileRecord struct {
	bun.BaseModel `bun:"table:auth_profiles,alias:ap"`

	ID            string    `bun:"id,pk"`
	PrincipalKind string    `bun:"principal_kind,notnull"`
	PrincipalUID  int64     `bun:"principal_uid,notnull"`
	UserName      string    `bun:"user_name"`
	Email         string    `bun:"email"`
	EmailYN       string    `bun:"email_yn"`
	Phone         string    `bun:"phone"`
	PhoneYN       string    `bun:"phone_yn"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type addressRecord struct {
	bun.BaseModel `bun:"table:auth_addresses,alias:aa"`

	ID            string    `bun:"id,pk"`
	PrincipalKind string    `bun:"principal_kind,notnull"`
	PrincipalUID  int64     `bun:"principal_uid,notnull"`
	MainAddress   string    `bun:"main_address"`
	MainLat       float64   `bun:"main_lat"`
	MainLan       float64   `bun:"main_lan"`
	SubAddress1   string    `bun:"sub_address1"`
	Sub1Lat       float64   `bun:"sub1_lat"`
	Sub1Lan       float64   `bun:"sub1_lan"`
	SubAddress2   string    `bun:"sub_address2"`
	Sub2Lat       float64   `bun:"sub2_lat"`
	Sub2Lan       float64   `bun:"sub2_lan"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
