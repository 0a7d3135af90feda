package admission

import "testing"

func TestStepErrorMessageIncludesKind(t *testing.T) {
	err := newStepError(ErrTenantSuspended, "tenant %s is suspended", "acme")
	if err.Kind != ErrTenantSuspended {
		t.Fatalf("Kind = %v, want %v", err.Kind, ErrTenantSuspended)
	}
	want := "admission: TenantSuspended: tenant acme is suspended"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestErrorKindsMatchSpecVocabulary(t *testing.T) {
	kinds := map[ErrorKind]bool{
		ErrMissingToken:    true,
		ErrInvalidToken:    true,
		ErrExpiredToken:    true,
		ErrWrongTokenKind:  true,
		ErrTenantUnknown:   true,
		ErrTenantSuspended: true,
		ErrTenantDeleted:   true,
		ErrRateLimited:     true,
	}
	if len(kinds) != 8 {
		t.Fatalf("expected 8 distinct admission error kinds, got %d", len(kinds))
	}
}
