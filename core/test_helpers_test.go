package core

import (
	"context"
	"fmt"
	"sync"
)

type memUserStore struct {
	mu      sync.Mutex
	nextUID int64
	users   map[string]LocalUser
	hashes  map[string]string
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		users:  map[string]LocalUser{},
		hashes: map[string]string{},
	}
}

func (s *memUserStore) FindByUserID(_ context.Context, userID string) (LocalUser, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	return user, ok, nil
}

func (s *memUserStore) FindByUID(_ context.Context, uid int64) (LocalUser, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.UID == uid {
			return user, true, nil
		}
	}
	return LocalUser{}, false, nil
}

func (s *memUserStore) Create(_ context.Context, user LocalUser, passwordHash string) (LocalUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.UserID]; exists {
		return LocalUser{}, fmt.Errorf("user id already exists")
	}
	s.nextUID++
	user.UID = s.nextUID
	s.users[user.UserID] = user
	s.hashes[user.UserID] = passwordHash
	return user, nil
}

func (s *memUserStore) PasswordHash(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash, ok := s.hashes[userID]
	if !ok {
		return "", fmt.Errorf("user %q not found", userID)
	}
	return hash, nil
}

func (s *memUserStore) Delete(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return 0, nil
	}
	delete(s.users, userID)
	delete(s.hashes, userID)
	return 1, nil
}

func (s *memUserStore) Managers(_ context.Context) ([]LocalUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	managers := []LocalUser{}
	for _, user := range s.users {
		if user.Role == RoleManager {
			managers = append(managers, user)
		}
	}
	return managers, nil
}

type memSocialStore struct {
	mu      sync.Mutex
	nextUID int64
	byName  map[string]SocialIdentity
}

func newMemSocialStore() *memSocialStore {
	return &memSocialStore{byName: map[string]SocialIdentity{}}
}

func (s *memSocialStore) FindByUserName(_ context.Context, userName string) (SocialIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.byName[userName]
	return identity, ok, nil
}

func (s *memSocialStore) FindByExternalID(_ context.Context, externalID string) (SocialIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, identity := range s.byName {
		if identity.ExternalID == externalID {
			return identity, true, nil
		}
	}
	return SocialIdentity{}, false, nil
}

func (s *memSocialStore) FindByUID(_ context.Context, uid int64) (SocialIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, identity := range s.byName {
		if identity.UID == uid {
			return identity, true, nil
		}
	}
	return SocialIdentity{}, false, nil
}

func (s *memSocialStore) CreateIfAbsent(_ context.Context, identity SocialIdentity) (SocialIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byName[identity.UserName]; exists {
		return SocialIdentity{}, false, nil
	}
	s.nextUID++
	identity.UID = s.nextUID
	s.byName[identity.UserName] = identity
	return identity, true, nil
}

func (s *memSocialStore) Reactivate(_ context.Context, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, identity := range s.byName {
		if identity.ExternalID == externalID {
			identity.Status = IdentityActive
			s.byName[name] = identity
			return nil
		}
	}
	return fmt.Errorf("social identity %q not found", externalID)
}

func (s *memSocialStore) SoftDelete(_ context.Context, externalID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, identity := range s.byName {
		if identity.ExternalID == externalID {
			identity.Status = IdentityDeleted
			s.byName[name] = identity
			return 1, nil
		}
	}
	return 0, nil
}

func (s *memSocialStore) put(identity SocialIdentity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if identity.UID == 0 {
		s.nextUID++
		identity.UID = s.nextUID
	} else if identity.UID > s.nextUID {
		s.nextUID = identity.UID
	}
	s.byName[identity.UserName] = identity
}

type memSessionTokenStore struct {
	mu        sync.Mutex
	rows      map[PrincipalRef]Session
	upsertErr error
}

func newMemSessionTokenStore() *memSessionTokenStore {
	return &memSessionTokenStore{rows: map[PrincipalRef]Session{}}
}

func (s *memSessionTokenStore) Upsert(_ context.Context, ref PrincipalRef, accessToken string, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.rows[ref] = Session{Principal: ref, AccessToken: accessToken, RefreshToken: refreshToken}
	return nil
}

func (s *memSessionTokenStore) FindByPrincipal(_ context.Context, ref PrincipalRef) (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.rows[ref]
	return session, ok, nil
}

func (s *memSessionTokenStore) FindByToken(_ context.Context, token string) (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.rows {
		if session.AccessToken == token || session.RefreshToken == token {
			return session, true, nil
		}
	}
	return Session{}, false, nil
}

func (s *memSessionTokenStore) DeleteByPrincipal(_ context.Context, ref PrincipalRef) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[ref]; !ok {
		return 0, nil
	}
	delete(s.rows, ref)
	return 1, nil
}

type memProfileStore struct {
	mu       sync.Mutex
	rows     map[PrincipalRef]ProfileSnapshot
	applyErr error
}

func newMemProfileStore() *memProfileStore {
	return &memProfileStore{rows: map[PrincipalRef]ProfileSnapshot{}}
}

func (s *memProfileStore) ReadCurrent(_ context.Context, ref PrincipalRef) (ProfileSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, ok := s.rows[ref]
	if !ok {
		return ProfileSnapshot{Principal: ref}, nil
	}
	return snapshot, nil
}

func (s *memProfileStore) ApplyUpdate(_ context.Context, ref PrincipalRef, profile Profile, address Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.applyErr != nil {
		return s.applyErr
	}
	s.rows[ref] = ProfileSnapshot{Principal: ref, Profile: profile, Address: address}
	return nil
}

func (s *memProfileStore) UpdateAddress(_ context.Context, ref PrincipalRef, address Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.rows[ref]
	snapshot.Principal = ref
	snapshot.Address = address
	s.rows[ref] = snapshot
	return nil
}

func (s *memProfileStore) Restore(_ context.Context, snapshot ProfileSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[snapshot.Principal] = snapshot
	return nil
}

func (s *memProfileStore) current(ref PrincipalRef) ProfileSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[ref]
}

type captureEnrichmentClient struct {
	mu       sync.Mutex
	payloads []AllergyPayload
	err      error
}

func (c *captureEnrichmentClient) Notify(_ context.Context, payload AllergyPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *captureEnrichmentClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}
