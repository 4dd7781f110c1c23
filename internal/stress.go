package internal

// Stress band thresholds shared by the metric bars and the avatar
const (
	StressWarningThreshold = 30.0
	StressAlertThreshold   = 60.0
)

// Emissive intensity range driven by stress level
const (
	MinEmissiveIntensity = 0.4
	MaxEmissiveIntensity = 0.7
)

// StressBand classifies a stress level
type StressBand int

const (
	BandCalm StressBand = iota
	BandWarning
	BandAlert
)

// ClassifyStress returns the band for v. The lower edge of each band is
// inclusive.
func ClassifyStress(v float64) StressBand {
	switch {
	case v >= StressAlertThreshold:
		return BandAlert
	case v >= StressWarningThreshold:
		return BandWarning
	default:
		return BandCalm
	}
}

// Class returns the display class name of the band
func (b StressBand) Class() string {
	switch b {
	case BandAlert:
		return "alert"
	case BandWarning:
		return "warning"
	default:
		return "calm"
	}
}

func (b StressBand) String() string {
	return b.Class()
}

// EmissiveIntensity maps a stress level to the avatar glow intensity:
// 0.4 at no stress rising linearly to 0.7 at 100.
func EmissiveIntensity(stress float64) float64 {
	return MinEmissiveIntensity + (clampPercent(stress)/100)*(MaxEmissiveIntensity-MinEmissiveIntensity)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
