package domain_test

import (
	"testing"

	"github.com/neomorfeo/schooldesk/internal/domain"
)

func TestResolvePrincipal(t *testing.T) {
	global := &domain.Principal{UID: "u1", Name: "", Email: "head@hillside.ac", Contact: "", TenantID: "SCHOOL_001"}
	scoped := &domain.Principal{UID: "u1", Name: "Jane Doe", Email: "old@hillside.ac", Contact: "0700", TenantID: "SCHOOL_001"}

	cases := []struct {
		name      string
		global    *domain.Principal
		scoped    *domain.Principal
		wantOK    bool
		wantEmail string
		wantName  string
	}{
		{"global wins and borrows blanks", global, scoped, true, "head@hillside.ac", "Jane Doe"},
		{"global only", global, nil, true, "head@hillside.ac", ""},
		{"scoped only", nil, scoped, true, "old@hillside.ac", "Jane Doe"},
		{"global without email falls back", &domain.Principal{UID: "u1", Name: "X"}, scoped, true, "old@hillside.ac", "Jane Doe"},
		{"neither", nil, nil, false, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := domain.ResolvePrincipal(tc.global, tc.scoped)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if got.Email != tc.wantEmail {
				t.Errorf("Email = %q, want %q", got.Email, tc.wantEmail)
			}
			if got.Name != tc.wantName {
				t.Errorf("Name = %q, want %q", got.Name, tc.wantName)
			}
		})
	}
}

func TestResolvePrincipal_DoesNotMutateInputs(t *testing.T) {
	global := &domain.Principal{UID: "u1", Email: "a@b.c"}
	scoped := &domain.Principal{UID: "u1", Name: "Jane"}

	_, _ = domain.ResolvePrincipal(global, scoped)
	if global.Name != "" {
		t.Errorf("global record modified: %+v", global)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := domain.NormalizeEmail("  Head@Hillside.AC "); got != "head@hillside.ac" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}
