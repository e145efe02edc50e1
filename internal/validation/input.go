package validation

import (
	"fmt"
	"regexp"
)

// ValidateSnapshotID validates snapshot ID format
func ValidateSnapshotID(id string) error {
	if len(id) == 0 || len(id) > 64 {
		return fmt.Errorf("snapshot ID must be 1-64 characters")
	}

	// Allow alphanumeric, hyphens, underscores
	matched, _ := regexp.MatchString(`^[a-zA-Z0-9_-]+$`, id)
	if !matched {
		return fmt.Errorf("snapshot ID can only contain alphanumeric characters, hyphens, and underscores")
	}

	return nil
}

// ValidateCharacterName validates a character name from a request
func ValidateCharacterName(name string) error {
	if len(name) == 0 || len(name) > 128 {
		return fmt.Errorf("character name must be 1-128 characters")
	}

	matched, _ := regexp.MatchString(`^[a-zA-Z0-9 '_-]+$`, name)
	if !matched {
		return fmt.Errorf("character name contains invalid characters")
	}

	return nil
}

// ValidatePlayerInput validates free-form player input
func ValidatePlayerInput(text string) error {
	if len(text) == 0 {
		return fmt.Errorf("input is empty")
	}
	if len(text) > 4096 {
		return fmt.Errorf("input must be at most 4096 characters")
	}
	return nil
}
