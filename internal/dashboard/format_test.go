package dashboard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatAndSplitUnit(t *testing.T) {
	a := assert.New(t)

	a.Equal("101 - Block A", FormatUnit(" 101 ", "a "))

	n, b := SplitUnit("101 - Block A")
	a.Equal("101", n)
	a.Equal("A", b)

	n, b = SplitUnit("Apt 7")
	a.Equal("Apt 7", n)
	a.Empty(b)
}

func TestMaskPhone(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"11", "11"},
		{"119", "(11) 9"},
		{"1191234", "(11) 91234"},
		{"11912345", "(11) 91234-5"},
		{"11912345678", "(11) 91234-5678"},
		{"(11) 91234-5678 ext 9", "(11) 91234-5678"},
		{"119123456789999", "(11) 91234-5678"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaskPhone(tt.in), "input %q", tt.in)
	}
}

func TestNames(t *testing.T) {
	a := assert.New(t)

	a.Equal("Ana Souza", DisplayName("Ana Maria de Souza"))
	a.Equal("Ana", DisplayName("  Ana "))
	a.Equal("", DisplayName(""))

	a.Equal("AS", Initials("ana maria souza"))
	a.Equal("AN", Initials("ana"))
	a.Equal("É", Initials("é"))
	a.Equal("", Initials(" "))
}

func TestLabels(t *testing.T) {
	a := assert.New(t)

	a.Equal("Manager", RoleLabel("owner", "Tenant"))
	a.Equal("Manager", RoleLabel("admin", ""))
	a.Equal("Tenant", RoleLabel("resident", "Tenant"))
	a.Equal("Resident", RoleLabel("resident", ""))

	a.Equal("Paid up", StatusBadge("ok"))
	a.Equal("Overdue", StatusBadge("late"))
	a.Equal("Overdue", StatusBadge(""))

	a.Equal("https://ui-avatars.com/api/?name=Ana+Souza&background=random", AvatarURL("Ana Souza"))
	a.Equal("https://ui-avatars.com/api/?name=User&background=random", AvatarURL(""))

	a.Equal("12/50", UnitCounter(12, 50))
}

func TestResidentInputValidate(t *testing.T) {
	valid := ResidentInput{Name: "Ana", Email: "ana@example.com", UnitNumber: "101", Block: "a"}

	tests := []struct {
		name     string
		mutate   func(in *ResidentInput)
		creating bool
		field    string
	}{
		{"valid", func(in *ResidentInput) {}, true, ""},
		{"missing name", func(in *ResidentInput) { in.Name = " " }, true, "name"},
		{"missing email on create", func(in *ResidentInput) { in.Email = "" }, true, "email"},
		{"missing email on update", func(in *ResidentInput) { in.Email = "" }, false, ""},
		{"bad email", func(in *ResidentInput) { in.Email = "ana@" }, true, "email"},
		{"email without domain dot", func(in *ResidentInput) { in.Email = "ana@localhost" }, true, "email"},
		{"display-name email", func(in *ResidentInput) { in.Email = "Ana <ana@example.com>" }, true, "email"},
		{"unit letters", func(in *ResidentInput) { in.UnitNumber = "1O1" }, true, "unit"},
		{"missing block", func(in *ResidentInput) { in.Block = "" }, true, "block"},
		{"bad status", func(in *ResidentInput) { in.Status = "maybe" }, true, "status"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			err := in.Validate(tt.creating)
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			if assert.True(t, errors.As(err, &verr), "got %v", err) {
				assert.Equal(t, tt.field, verr.Field)
			}
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}
