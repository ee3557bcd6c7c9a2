package dashboard

import (
	"net/mail"
	"regexp"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var (
	unitNumber = regexp.MustCompile(`^[0-9]{1,5}$`)
	blockName  = regexp.MustCompile(`^[A-Z0-9]{1,3}$`)
)

// Validate checks a resident form; the email is only required on create
func (in ResidentInput) Validate(creating bool) error {
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", "is required")
	}
	if creating || in.Email != "" {
		if err := validateEmail(in.Email); err != nil {
			return err
		}
	}
	if !unitNumber.MatchString(strings.TrimSpace(in.UnitNumber)) {
		return invalid("unit", "number must be 1 to 5 digits")
	}
	if !blockName.MatchString(strings.ToUpper(strings.TrimSpace(in.Block))) {
		return invalid("block", "must be 1 to 3 letters or digits")
	}
	switch in.Status {
	case "", "ok", "late":
	default:
		return invalid("status", "must be ok or late")
	}
	return nil
}

func validateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return invalid("email", "is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return invalid("email", "is not a valid address")
	}
	return nil
}

func validateDate(field, value string) error {
	if _, err := time.Parse(dateLayout, value); err != nil {
		return invalid(field, "must be a date like 2024-01-31")
	}
	return nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return invalid(field, "is required")
	}
	return nil
}
