package dashboard

import (
	"fmt"
	"net/url"
	"strings"
	"unicode"
)

const unitSeparator = " - Block "

// FormatUnit joins a unit number and block as "<num> - Block <B>"
func FormatUnit(number, block string) string {
	return strings.TrimSpace(number) + unitSeparator + strings.ToUpper(strings.TrimSpace(block))
}

// SplitUnit is the inverse of FormatUnit. Legacy values without a block
// come back whole as the number with an empty block.
func SplitUnit(unit string) (number, block string) {
	if n, b, ok := strings.Cut(unit, unitSeparator); ok {
		return n, b
	}
	return unit, ""
}

// MaskPhone formats up to 11 digits as "(dd) ddddd-dddd". Non-digits are
// dropped; shorter inputs are masked as far as they go.
func MaskPhone(raw string) string {
	digits := make([]rune, 0, 11)
	for _, r := range raw {
		if unicode.IsDigit(r) && len(digits) < 11 {
			digits = append(digits, r)
		}
	}

	d := string(digits)
	switch {
	case len(d) <= 2:
		return d
	case len(d) <= 7:
		return fmt.Sprintf("(%s) %s", d[:2], d[2:])
	default:
		return fmt.Sprintf("(%s) %s-%s", d[:2], d[2:7], d[7:])
	}
}

// DisplayName shortens a full name to first and last name
func DisplayName(name string) string {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return parts[0] + " " + parts[len(parts)-1]
	}
}

// Initials returns the first letters of the first and last name, or the
// first two letters of a single name, upper-cased
func Initials(name string) string {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return ""
	case 1:
		r := []rune(parts[0])
		if len(r) > 2 {
			r = r[:2]
		}
		return strings.ToUpper(string(r))
	default:
		first := []rune(parts[0])[0]
		last := []rune(parts[len(parts)-1])[0]
		return strings.ToUpper(string([]rune{first, last}))
	}
}

// IsManager reports whether role may manage the building
func IsManager(role string) bool {
	switch strings.ToLower(role) {
	case "owner", "admin":
		return true
	}
	return false
}

// RoleLabel is the role shown next to a user: "Manager" for owners and
// admins, otherwise the resident type
func RoleLabel(role, residentType string) string {
	if IsManager(role) {
		return "Manager"
	}
	if residentType != "" {
		return residentType
	}
	return "Resident"
}

// StatusBadge is the payment badge of a resident
func StatusBadge(status string) string {
	if status == "ok" {
		return "Paid up"
	}
	return "Overdue"
}

// AvatarURL is the generated avatar used when a resident has none
func AvatarURL(name string) string {
	if strings.TrimSpace(name) == "" {
		name = "User"
	}
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=random"
}

// UnitCounter renders occupied units as "<n>/<capacity>"
func UnitCounter(occupied, capacity int) string {
	return fmt.Sprintf("%d/%d", occupied, capacity)
}
