package internal

import (
	"errors"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"software_engineer", RoleSoftwareEngineer, false},
		{" Office_Worker ", RoleOfficeWorker, false},
		{"factory_worker", RoleFactoryWorker, false},
		{"astronaut", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
		var valErr *ValidationError
		if tt.wantErr && !errors.As(err, &valErr) {
			t.Errorf("ParseRole(%q) error should be a ValidationError, got %T", tt.in, err)
		}
	}
}

func TestRoleTitle(t *testing.T) {
	if got := RoleSoftwareEngineer.Title(); got != "Software Engineer" {
		t.Errorf("Title() = %q, want %q", got, "Software Engineer")
	}
}

func TestMetricsSampleValidate(t *testing.T) {
	valid := MetricsSample{HeartRate: 72, StressLevel: 40, CognitiveLoad: 50, FatigueScore: 20, PostureScore: 80}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}

	bad := valid
	bad.StressLevel = 120
	err := bad.Validate()
	var valErr *ValidationError
	if !errors.As(err, &valErr) || valErr.Field != "stress_level" {
		t.Errorf("Validate() error = %v, want stress_level validation error", err)
	}
}

func TestResponseValidation(t *testing.T) {
	if err := (&User{UserID: 1, Username: "alice"}).Validate(); err != nil {
		t.Errorf("User.Validate() error = %v", err)
	}
	if err := (&User{UserID: 1}).Validate(); err == nil {
		t.Error("User.Validate() should reject an empty username")
	}
	if err := (&Profile{ProfileID: 3, RoleType: "pilot"}).Validate(); err == nil {
		t.Error("Profile.Validate() should reject an unknown role")
	}
	if err := (&Session{}).Validate(); err == nil {
		t.Error("Session.Validate() should reject a zero id")
	}
}

func TestPhysiologicalReadingSample(t *testing.T) {
	stress := 65.0
	r := &PhysiologicalReading{SessionID: 1, StressLevel: &stress}
	s := r.Sample()
	if s.StressLevel != 65 || s.HeartRate != 0 {
		t.Errorf("Sample() = %+v, want stress 65 and zero heart rate", s)
	}
}

func TestParseTimestamp(t *testing.T) {
	for _, in := range []string{"2025-03-01T10:20:30", "2025-03-01T10:20:30.123456", "2025-03-01T10:20:30Z"} {
		ts, err := ParseTimestamp(in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q) error = %v", in, err)
			continue
		}
		if ts.Year() != 2025 || ts.Minute() != 20 {
			t.Errorf("ParseTimestamp(%q) = %v", in, ts)
		}
	}
	if _, err := ParseTimestamp("yesterday"); err == nil {
		t.Error("ParseTimestamp() should reject garbage")
	}
}
