package iam

import (
	"sync"

	"github.com/cloudgate/s3gw/internal/apierrors"
)

// Store is the Identity Store of spec.md §4.3: users keyed by user_id, with
// secondary unique indices over access-key id (both S3 and Swift) and
// email. Every index-mutating operation updates all three indices
// atomically, per the invariant in spec.md §3.
//
// Concurrency follows spec.md §5: per-user-id reader/writer exclusion,
// implemented here with one coarse RWMutex guarding the whole store rather
// than per-row locks — row count is small enough (admin-scale, not
// request-scale) that a single mutex never becomes a bottleneck, and it
// keeps the cross-index invariant trivially atomic.
type Store struct {
	mu sync.RWMutex

	usersByID    map[string]*User
	userByKey    map[string]string // access key id (S3 or Swift) -> user id
	userByEmail  map[string]string // email -> user id
	bucketOwners map[string]string // bucket name -> owner user id (mirrors Bucket Admin link state)
}

// NewStore returns an empty Identity Store.
func NewStore() *Store {
	return &Store{
		usersByID:    map[string]*User{},
		userByKey:    map[string]string{},
		userByEmail:  map[string]string{},
		bucketOwners: map[string]string{},
	}
}

// AddUserParams are the inputs to user.add.
type AddUserParams struct {
	UserID      string
	DisplayName string
	Email       string
	MaxBuckets  int // 0 means "use default"

	AccessKeyID string // explicit S3 key id, "" to auto-generate
	SecretKey   string // explicit S3 secret, "" to auto-generate
	Caps        CapSet
}

// AddUser implements user.add: requires user_id and display_name; when no
// S3 access key is supplied, a default key pair is still generated (the
// user must always end up with at least one S3 key).
func (s *Store) AddUser(p AddUserParams) (*User, error) {
	if p.UserID == "" || p.DisplayName == "" {
		return nil, apierrors.New(apierrors.ErrInvalidArgument, "user_id and display_name are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByID[p.UserID]; exists {
		return nil, apierrors.New(apierrors.ErrUserExists, "user "+p.UserID+" already exists")
	}
	if p.Email != "" {
		if _, exists := s.userByEmail[p.Email]; exists {
			return nil, apierrors.New(apierrors.ErrEmailExists, "email "+p.Email+" already in use")
		}
	}

	keyID := p.AccessKeyID
	if keyID == "" {
		keyID = GenerateAccessKeyID()
	}
	if _, exists := s.userByKey[keyID]; exists {
		return nil, apierrors.New(apierrors.ErrKeyExists, "access key "+keyID+" already in use")
	}
	secret := p.SecretKey
	if secret == "" {
		secret = GenerateSecretKey()
	}

	u := NewUser(p.UserID, p.DisplayName)
	u.Email = p.Email
	if p.MaxBuckets > 0 {
		u.MaxBuckets = p.MaxBuckets
	}
	if p.Caps != nil {
		u.Caps = p.Caps
	}
	u.AccessKeys[keyID] = AccessKey{ID: keyID, Secret: secret, Type: KeyTypeS3}

	s.usersByID[p.UserID] = u
	s.userByKey[keyID] = p.UserID
	if p.Email != "" {
		s.userByEmail[p.Email] = p.UserID
	}
	return u, nil
}

// ModifyUserParams are the inputs to user.modify; zero-value fields with
// their matching Set* flag false are left unchanged.
type ModifyUserParams struct {
	UserID string

	DisplayName    string
	SetDisplayName bool

	Email    string
	SetEmail bool

	MaxBuckets    int
	SetMaxBuckets bool

	Suspended    bool
	SetSuspended bool
}

// ModifyUser implements user.modify, re-checking email uniqueness when the
// email changes.
func (s *Store) ModifyUser(p ModifyUserParams) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usersByID[p.UserID]
	if !ok {
		return nil, apierrors.New(apierrors.ErrUserNotFound, "user "+p.UserID+" not found")
	}
	if p.SetEmail && p.Email != u.Email {
		if p.Email != "" {
			if owner, exists := s.userByEmail[p.Email]; exists && owner != p.UserID {
				return nil, apierrors.New(apierrors.ErrEmailExists, "email "+p.Email+" already in use")
			}
		}
		if u.Email != "" {
			delete(s.userByEmail, u.Email)
		}
		if p.Email != "" {
			s.userByEmail[p.Email] = p.UserID
		}
		u.Email = p.Email
	}
	if p.SetDisplayName {
		u.DisplayName = p.DisplayName
	}
	if p.SetMaxBuckets {
		u.MaxBuckets = p.MaxBuckets
	}
	if p.SetSuspended {
		u.Suspended = p.Suspended
	}
	return u, nil
}

// RemoveUser implements user.remove: fails with a NotEmpty-shaped error
// unless purge is set or the user owns no buckets.
func (s *Store) RemoveUser(userID string, purge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usersByID[userID]
	if !ok {
		return apierrors.New(apierrors.ErrUserNotFound, "user "+userID+" not found")
	}
	if !purge {
		for _, owner := range s.bucketOwners {
			if owner == userID {
				return apierrors.New(apierrors.ErrBucketNotEmpty, "user "+userID+" still owns buckets")
			}
		}
	}

	for key := range u.AccessKeys {
		delete(s.userByKey, key)
	}
	for key := range u.SwiftKeys {
		delete(s.userByKey, key)
	}
	if u.Email != "" {
		delete(s.userByEmail, u.Email)
	}
	if purge {
		for bucket, owner := range s.bucketOwners {
			if owner == userID {
				delete(s.bucketOwners, bucket)
			}
		}
	}
	delete(s.usersByID, userID)
	return nil
}

// Info implements user.info.
func (s *Store) Info(userID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.usersByID[userID]
	if !ok {
		return nil, apierrors.New(apierrors.ErrUserNotFound, "user "+userID+" not found")
	}
	cp := *u
	return &cp, nil
}

// UserByAccessKey resolves an S3 or Swift access key id back to its owning
// user, the index the Authenticator relies on.
func (s *Store) UserByAccessKey(keyID string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.userByKey[keyID]
	if !ok {
		return nil, apierrors.New(apierrors.ErrInvalidAccessKeyID, "unknown access key "+keyID)
	}
	u := s.usersByID[userID]
	cp := *u
	return &cp, nil
}

// AddSubuser implements subusers.add.
func (s *Store) AddSubuser(userID, name string, mask Perm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[userID]
	if !ok {
		return apierrors.New(apierrors.ErrUserNotFound, "user "+userID+" not found")
	}
	if _, exists := u.Subusers[name]; exists {
		return apierrors.New(apierrors.ErrSubuserExists, "subuser "+name+" already exists")
	}
	u.Subusers[name] = Subuser{Name: name, PermMask: mask}
	return nil
}

// ModifySubuser implements subusers.modify.
func (s *Store) ModifySubuser(userID, name string, mask Perm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[userID]
	if !ok {
		return apierrors.New(apierrors.ErrUserNotFound, "user "+userID+" not found")
	}
	if _, exists := u.Subusers[name]; !exists {
		return apierrors.New(apierrors.ErrSubuserNotFound, "subuser "+name+" not found")
	}
	u.Subusers[name] = Subuser{Name: name, PermMask: mask}
	return nil
}

// RemoveSubuser implements subusers.remove; when purgeKeys is set, any
// access keys belonging to this subuser are removed along with it.
func (s *Store) RemoveSubuser(userID, name string, purgeKeys bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[userID]
	if !ok {
		return apierrors.New(apierrors.ErrUserNotFound, "user "+userID+" not found")
	}
	if _, exists := u.Subusers[name]; !exists {
		return apierrors.New(apierrors.ErrSubuserNotFound, "subuser "+name+" not found")
	}
	delete(u.Subusers, name)
	if purgeKeys {
		for id, k := range u.AccessKeys {
			if k.Subuser == name {
				delete(u.AccessKeys, id)
				delete(s.userByKey, id)
			}
		}
		for id, k := range u.SwiftKeys {
			if k.Subuser == name {
				delete(u.SwiftKeys, id)
				delete(s.userByKey, id)
			}
		}
	}
	return nil
}

// AddKeyParams are the inputs to keys.add.
type AddKeyParams struct {
	UserID      string
	Subuser     string // "" for a user-level key
	Type        KeyType
	AccessKeyID string // explicit id, "" to auto-generate (S3 only)
	SecretKey   string // explicit secret, "" to auto-generate
}

// AddKey implements keys.add. Swift keys carry only a secret (their id is
// the caller-supplied subuser-qualified name, matching Swift's
// "account:subuser" convention) so AccessKeyID is required for Swift keys.
func (s *Store) AddKey(p AddKeyParams) (AccessKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[p.UserID]
	if !ok {
		return AccessKey{}, apierrors.New(apierrors.ErrUserNotFound, "user "+p.UserID+" not found")
	}
	if p.Subuser != "" {
		if _, exists := u.Subusers[p.Subuser]; !exists {
			return AccessKey{}, apierrors.New(apierrors.ErrSubuserNotFound, "subuser "+p.Subuser+" not found")
		}
	}

	id := p.AccessKeyID
	if id == "" {
		if p.Type == KeyTypeSwift {
			return AccessKey{}, apierrors.New(apierrors.ErrInvalidArgument, "swift keys require an explicit access key id")
		}
		id = GenerateAccessKeyID()
	}
	if _, exists := s.userByKey[id]; exists {
		return AccessKey{}, apierrors.New(apierrors.ErrKeyExists, "access key "+id+" already in use")
	}
	secret := p.SecretKey
	if secret == "" {
		secret = GenerateSecretKey()
	}

	key := AccessKey{ID: id, Secret: secret, Subuser: p.Subuser, Type: p.Type}
	if p.Type == KeyTypeSwift {
		u.SwiftKeys[id] = key
	} else {
		u.AccessKeys[id] = key
	}
	s.userByKey[id] = p.UserID
	return key, nil
}

// RemoveKey implements keys.remove.
func (s *Store) RemoveKey(userID, keyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[userID]
	if !ok {
		return apierrors.New(apierrors.ErrUserNotFound, "user "+userID+" not found")
	}
	if _, exists := u.AccessKeys[keyID]; exists {
		delete(u.AccessKeys, keyID)
		delete(s.userByKey, keyID)
		return nil
	}
	if _, exists := u.SwiftKeys[keyID]; exists {
		delete(u.SwiftKeys, keyID)
		delete(s.userByKey, keyID)
		return nil
	}
	return apierrors.New(apierrors.ErrKeyNotFound, "access key "+keyID+" not found")
}

// AddCaps implements caps.add: unions the parsed CapSet into the user's.
func (s *Store) AddCaps(userID string, caps CapSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[userID]
	if !ok {
		return apierrors.New(apierrors.ErrUserNotFound, "user "+userID+" not found")
	}
	for r, p := range caps {
		u.Caps.Add(r, p)
	}
	return nil
}

// RemoveCaps implements caps.remove: differences the parsed CapSet out of
// the user's.
func (s *Store) RemoveCaps(userID string, caps CapSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.usersByID[userID]
	if !ok {
		return apierrors.New(apierrors.ErrUserNotFound, "user "+userID+" not found")
	}
	for r, p := range caps {
		u.Caps.Remove(r, p)
	}
	return nil
}

// LinkBucket records bucket as owned by userID (used by Bucket Admin's
// link operation to keep the Identity Store's view of ownership current
// for user.remove's NotEmpty check).
func (s *Store) LinkBucket(bucket, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bucketOwners[bucket] = userID
}

// UnlinkBucket removes bucket from the ownership index.
func (s *Store) UnlinkBucket(bucket string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bucketOwners, bucket)
}

// BucketOwner returns the current owner of bucket, if linked.
func (s *Store) BucketOwner(bucket string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.bucketOwners[bucket]
	return owner, ok
}
