package notes

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/clinicore/clinic-portal/internal/clinicapi"
)

// icd10Pattern matches an ICD-10-CM code: a letter (U is reserved, not
// excluded here), two alphanumerics, and an optional subclassification of
// up to four characters after the dot.
var icd10Pattern = regexp.MustCompile(`^[A-TV-Z][0-9][0-9A-Z](\.[0-9A-Z]{1,4})?$`)

// Physiological bounds for charting input. Values outside these ranges are
// almost certainly data-entry mistakes, so the form rejects them before they
// reach the record.
const (
	minTemperatureC = 30.0
	maxTemperatureC = 45.0
	minHeartRate    = 20
	maxHeartRate    = 300
	minSystolic     = 50
	maxSystolic     = 300
	minDiastolic    = 20
	maxDiastolic    = 200
	minRespRate     = 4
	maxRespRate     = 80
	minOxygenSat    = 50
	maxOxygenSat    = 100
)

// ValidateVitals checks the vitals payload against physiological bounds.
func ValidateVitals(v clinicapi.VitalSigns) error {
	if v.TemperatureCelsius < minTemperatureC || v.TemperatureCelsius > maxTemperatureC {
		return fmt.Errorf("temperature %.1f°C is out of range (%.0f-%.0f)", v.TemperatureCelsius, minTemperatureC, maxTemperatureC)
	}
	if v.HeartRateBPM < minHeartRate || v.HeartRateBPM > maxHeartRate {
		return fmt.Errorf("heart rate %d bpm is out of range (%d-%d)", v.HeartRateBPM, minHeartRate, maxHeartRate)
	}
	if v.SystolicBP < minSystolic || v.SystolicBP > maxSystolic {
		return fmt.Errorf("systolic pressure %d is out of range (%d-%d)", v.SystolicBP, minSystolic, maxSystolic)
	}
	if v.DiastolicBP < minDiastolic || v.DiastolicBP > maxDiastolic {
		return fmt.Errorf("diastolic pressure %d is out of range (%d-%d)", v.DiastolicBP, minDiastolic, maxDiastolic)
	}
	if v.DiastolicBP >= v.SystolicBP {
		return fmt.Errorf("diastolic pressure %d must be below systolic %d", v.DiastolicBP, v.SystolicBP)
	}
	if v.RespiratoryRate < minRespRate || v.RespiratoryRate > maxRespRate {
		return fmt.Errorf("respiratory rate %d is out of range (%d-%d)", v.RespiratoryRate, minRespRate, maxRespRate)
	}
	if v.OxygenSaturation < minOxygenSat || v.OxygenSaturation > maxOxygenSat {
		return fmt.Errorf("oxygen saturation %d%% is out of range (%d-%d)", v.OxygenSaturation, minOxygenSat, maxOxygenSat)
	}
	return nil
}

// ValidateDiagnosis checks the diagnosis payload; codes are normalized to
// upper case before matching.
func ValidateDiagnosis(d clinicapi.Diagnosis) error {
	code := strings.ToUpper(strings.TrimSpace(d.Code))
	if code == "" {
		return fmt.Errorf("diagnosis code is required")
	}
	if !icd10Pattern.MatchString(code) {
		return fmt.Errorf("%q is not a valid ICD-10 code", d.Code)
	}
	if strings.TrimSpace(d.Description) == "" {
		return fmt.Errorf("diagnosis description is required")
	}
	return nil
}

// NormalizeCode returns the canonical upper-case form of an ICD-10 code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
