package types

import "github.com/google/uuid"

// NewID returns a new UUID v7 string, falling back to v4 if v7 generation
// fails.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// ValidID reports whether s is a well-formed UUID in canonical
// 8-4-4-4-12 form.
func ValidID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
