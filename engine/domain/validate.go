package domain

import "strconv"

// ValidateText rejects empty input before any outbound call is made.
func ValidateText(field, s string) error {
	if s == "" {
		return NewValidationError(field, s)
	}
	return nil
}

// ValidateScore rejects a score threshold outside [0, 1].
func ValidateScore(min float32) error {
	if min < 0 || min > 1 {
		return NewValidationError("minResultScore", strconv.FormatFloat(float64(min), 'g', -1, 32))
	}
	return nil
}

// ValidateLimit rejects a non-positive result cap.
func ValidateLimit(n int) error {
	if n < 1 {
		return NewValidationError("maxResults", strconv.Itoa(n))
	}
	return nil
}
