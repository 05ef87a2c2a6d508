package iam

import "testing"

func TestPermString(t *testing.T) {
	cases := []struct {
		name string
		perm Perm
		want string
	}{
		{"full_control", PermFullControl, "FULL_CONTROL"},
		{"read_write", PermRead | PermWrite, "READ|WRITE"},
		{"read_only", PermRead, "READ"},
		{"write_only", PermWrite, "WRITE"},
		{"read_acp", PermReadACP, "READ_ACP"},
		{"write_acp", PermWriteACP, "WRITE_ACP"},
		{"nothing", Perm(0), ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.perm.String(); got != c.want {
				t.Errorf("Perm(%d).String() = %q, want %q", c.perm, got, c.want)
			}
		})
	}
}

func TestParseCaps(t *testing.T) {
	caps, err := ParseCaps("buckets=read; users=read,write")
	if err != nil {
		t.Fatalf("ParseCaps: %v", err)
	}
	if !caps.Allows(ResourceBuckets, CapRead) {
		t.Error("expected buckets=read")
	}
	if caps.Allows(ResourceBuckets, CapWrite) {
		t.Error("did not expect buckets=write")
	}
	if !caps.Allows(ResourceUsers, CapRead|CapWrite) {
		t.Error("expected users=read,write")
	}
}

func TestParseCapsWildcard(t *testing.T) {
	caps, err := ParseCaps("usage=*")
	if err != nil {
		t.Fatalf("ParseCaps: %v", err)
	}
	if !caps.Allows(ResourceUsage, CapRead|CapWrite) {
		t.Error("usage=* should grant read and write")
	}
}

func TestParseCapsInvalid(t *testing.T) {
	if _, err := ParseCaps("buckets"); err == nil {
		t.Error("expected error for clause missing '='")
	}
	if _, err := ParseCaps("buckets=delete"); err == nil {
		t.Error("expected error for unknown permission token")
	}
}

func TestParseCapsEmpty(t *testing.T) {
	caps, err := ParseCaps("   ")
	if err != nil {
		t.Fatalf("ParseCaps: %v", err)
	}
	if len(caps) != 0 {
		t.Errorf("expected empty CapSet, got %v", caps)
	}
}

func TestCapSetStringRoundTrip(t *testing.T) {
	caps, err := ParseCaps("buckets=read,write; usage=read")
	if err != nil {
		t.Fatalf("ParseCaps: %v", err)
	}
	rendered := caps.String()
	reparsed, err := ParseCaps(rendered)
	if err != nil {
		t.Fatalf("ParseCaps(rendered): %v", err)
	}
	if !reparsed.Allows(ResourceBuckets, CapRead|CapWrite) || !reparsed.Allows(ResourceUsage, CapRead) {
		t.Errorf("round trip through %q lost a grant", rendered)
	}
}

func TestCapSetAddRemove(t *testing.T) {
	caps := CapSet{}
	caps.Add(ResourceZone, CapRead)
	if !caps.Allows(ResourceZone, CapRead) {
		t.Fatal("Add did not grant the permission")
	}
	caps.Remove(ResourceZone, CapRead)
	if caps.Allows(ResourceZone, CapRead) {
		t.Error("Remove did not revoke the permission")
	}
}
