package regime

// VIXLevelFromValue buckets an absolute India VIX reading into the
// level the classifier consumes.
func VIXLevelFromValue(v float64) VIXLevel {
	switch {
	case v < 12:
		return VIXLow
	case v < 18:
		return VIXNormal
	case v < 25:
		return VIXElevated
	default:
		return VIXExtreme
	}
}
