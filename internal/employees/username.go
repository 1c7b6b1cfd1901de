package employees

import (
	"fmt"

	"golang.org/x/text/secure/precis"

	"github.com/retailops/backoffice/internal/shared"
)

// ValidateUsername enforces the PRECIS UsernameCasePreserved profile. Usernames
// are compared case-sensitively, so the profile must not fold case.
func ValidateUsername(username string) error {
	normalized, err := precis.UsernameCasePreserved.String(username)
	if err != nil {
		return fmt.Errorf("%w: username: %v", shared.ErrValidation, err)
	}
	if normalized != username {
		return fmt.Errorf("%w: username must be in normalized form", shared.ErrValidation)
	}
	return nil
}
