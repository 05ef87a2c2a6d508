package iam

import "testing"

func TestAddUserGeneratesKeyWhenUnspecified(t *testing.T) {
	s := NewStore()
	u, err := s.AddUser(AddUserParams{UserID: "alice", DisplayName: "Alice"})
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if len(u.AccessKeys) != 1 {
		t.Fatalf("expected exactly one generated access key, got %d", len(u.AccessKeys))
	}
	for id := range u.AccessKeys {
		if len(id) == 0 {
			t.Error("generated access key id is empty")
		}
	}
}

func TestAddUserDuplicateRejected(t *testing.T) {
	s := NewStore()
	if _, err := s.AddUser(AddUserParams{UserID: "alice", DisplayName: "Alice"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if _, err := s.AddUser(AddUserParams{UserID: "alice", DisplayName: "Alice Again"}); err == nil {
		t.Error("expected error creating a duplicate user id")
	}
}

func TestAddUserDuplicateEmailRejected(t *testing.T) {
	s := NewStore()
	if _, err := s.AddUser(AddUserParams{UserID: "alice", DisplayName: "Alice", Email: "a@example.com"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if _, err := s.AddUser(AddUserParams{UserID: "bob", DisplayName: "Bob", Email: "a@example.com"}); err == nil {
		t.Error("expected error creating a user with a duplicate email")
	}
}

func TestUserByAccessKeyIndex(t *testing.T) {
	s := NewStore()
	if _, err := s.AddUser(AddUserParams{UserID: "alice", DisplayName: "Alice", AccessKeyID: "AKIDEXAMPLE", SecretKey: "secret"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	u, err := s.UserByAccessKey("AKIDEXAMPLE")
	if err != nil {
		t.Fatalf("UserByAccessKey: %v", err)
	}
	if u.UserID != "alice" {
		t.Errorf("UserByAccessKey resolved to %q, want alice", u.UserID)
	}
	if _, err := s.UserByAccessKey("does-not-exist"); err == nil {
		t.Error("expected error for an unknown access key")
	}
}

func TestRemoveUserRequiresPurgeWhenOwningBuckets(t *testing.T) {
	s := NewStore()
	if _, err := s.AddUser(AddUserParams{UserID: "alice", DisplayName: "Alice"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	s.LinkBucket("photos", "alice")

	if err := s.RemoveUser("alice", false); err == nil {
		t.Error("expected NotEmpty-shaped error removing a user who owns a bucket without purge")
	}
	if err := s.RemoveUser("alice", true); err != nil {
		t.Errorf("RemoveUser with purge: %v", err)
	}
	if _, err := s.Info("alice"); err == nil {
		t.Error("user should be gone after a purging remove")
	}
}

func TestSubuserLifecycle(t *testing.T) {
	s := NewStore()
	if _, err := s.AddUser(AddUserParams{UserID: "alice", DisplayName: "Alice"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if err := s.AddSubuser("alice", "swift", PermRead); err != nil {
		t.Fatalf("AddSubuser: %v", err)
	}
	if err := s.AddSubuser("alice", "swift", PermRead); err == nil {
		t.Error("expected error adding a duplicate subuser")
	}

	key, err := s.AddKey(AddKeyParams{UserID: "alice", Subuser: "swift", Type: KeyTypeS3})
	if err != nil {
		t.Fatalf("AddKey: %v", err)
	}

	if err := s.RemoveSubuser("alice", "swift", true); err != nil {
		t.Fatalf("RemoveSubuser: %v", err)
	}
	if _, err := s.UserByAccessKey(key.ID); err == nil {
		t.Error("purge-keys should have removed the subuser's access key")
	}
}

func TestCapsAddRemove(t *testing.T) {
	s := NewStore()
	if _, err := s.AddUser(AddUserParams{UserID: "alice", DisplayName: "Alice"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	caps, _ := ParseCaps("buckets=read")
	if err := s.AddCaps("alice", caps); err != nil {
		t.Fatalf("AddCaps: %v", err)
	}
	u, _ := s.Info("alice")
	if !u.Caps.Allows(ResourceBuckets, CapRead) {
		t.Fatal("expected buckets=read after AddCaps")
	}

	if err := s.RemoveCaps("alice", caps); err != nil {
		t.Fatalf("RemoveCaps: %v", err)
	}
	u, _ = s.Info("alice")
	if u.Caps.Allows(ResourceBuckets, CapRead) {
		t.Error("expected buckets=read to be revoked after RemoveCaps")
	}
}
