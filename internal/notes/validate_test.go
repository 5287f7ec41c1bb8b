package notes

import (
	"testing"

	"github.com/clinicore/clinic-portal/internal/clinicapi"
)

func normalVitals() clinicapi.VitalSigns {
	return clinicapi.VitalSigns{
		TemperatureCelsius: 36.8,
		HeartRateBPM:       72,
		SystolicBP:         120,
		DiastolicBP:        80,
		RespiratoryRate:    16,
		OxygenSaturation:   98,
	}
}

func TestValidateVitals(t *testing.T) {
	if err := ValidateVitals(normalVitals()); err != nil {
		t.Fatalf("normal vitals rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*clinicapi.VitalSigns)
	}{
		{"temperature too low", func(v *clinicapi.VitalSigns) { v.TemperatureCelsius = 25 }},
		{"temperature too high", func(v *clinicapi.VitalSigns) { v.TemperatureCelsius = 46 }},
		{"heart rate zero", func(v *clinicapi.VitalSigns) { v.HeartRateBPM = 0 }},
		{"systolic too high", func(v *clinicapi.VitalSigns) { v.SystolicBP = 400 }},
		{"diastolic above systolic", func(v *clinicapi.VitalSigns) { v.DiastolicBP = 130 }},
		{"respiratory rate zero", func(v *clinicapi.VitalSigns) { v.RespiratoryRate = 0 }},
		{"oxygen over 100", func(v *clinicapi.VitalSigns) { v.OxygenSaturation = 101 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := normalVitals()
			tc.mutate(&v)
			if err := ValidateVitals(v); err == nil {
				t.Fatalf("expected rejection")
			}
		})
	}
}

func TestValidateDiagnosis(t *testing.T) {
	valid := []string{"A00", "J45.909", "E11.9", "s72.001a", "Z99.89"}
	for _, code := range valid {
		if err := ValidateDiagnosis(clinicapi.Diagnosis{Code: code, Description: "dx"}); err != nil {
			t.Errorf("valid code %q rejected: %v", code, err)
		}
	}

	invalid := []string{"", "123", "U07.1", "A0", "A00.12345", "AA0", "A00."}
	for _, code := range invalid {
		if err := ValidateDiagnosis(clinicapi.Diagnosis{Code: code, Description: "dx"}); err == nil {
			t.Errorf("invalid code %q accepted", code)
		}
	}

	if err := ValidateDiagnosis(clinicapi.Diagnosis{Code: "A00", Description: "  "}); err == nil {
		t.Errorf("empty description accepted")
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode(" j45.909 "); got != "J45.909" {
		t.Fatalf("expected J45.909, got %q", got)
	}
}
