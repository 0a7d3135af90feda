package tenantregistry

import "testing"

func TestAdmittable(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusTrial, true},
		{StatusActive, true},
		{StatusSuspended, false},
		{StatusDeleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			tenant := Tenant{Status: tt.status}
			if got := tenant.Admittable(); got != tt.want {
				t.Errorf("Admittable() for status %q = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}
