package scholarships

import (
	"fmt"
	"regexp"
)

const maxIDLength = 100

var validID = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// ValidateID checks a scholarship id. Ids double as bundled rule file names,
// so separators and dots are never allowed.
func ValidateID(id string) error {
	if len(id) == 0 {
		return fmt.Errorf("scholarship id cannot be empty")
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("scholarship id length %d exceeds maximum of %d characters", len(id), maxIDLength)
	}
	if !validID.MatchString(id) {
		return fmt.Errorf("scholarship id %q must match pattern %s (letters, digits, '-' or '_', starting with a letter or digit)", id, validID.String())
	}
	return nil
}

// Validate checks a registry entry.
func Validate(s Scholarship) error {
	if err := ValidateID(s.ID); err != nil {
		return err
	}
	if s.Name == "" {
		return fmt.Errorf("scholarship %q must have a name", s.ID)
	}
	return nil
}
