package dashboard

// Command is an intent issued by the presentation layer. Each concrete
// command has exactly one handler in Dispatch.
type Command interface {
	command() string
}

// ResidentInput is the resident form as entered by the user
type ResidentInput struct {
	Name       string
	Email      string
	Phone      string
	Type       string
	UnitNumber string
	Block      string
	Status     string
}

// SaveResident creates a resident, or updates one when ID is set. The
// email of an existing resident cannot be changed.
type SaveResident struct {
	ID    string
	Input ResidentInput
}

// DeleteResident removes a resident and its login account
type DeleteResident struct {
	Email string
}

// CreateReservation books a common area for the signed-in resident
type CreateReservation struct {
	Area string
	Date string // YYYY-MM-DD
}

// CancelReservation marks a reservation cancelled
type CancelReservation struct {
	ID string
}

// ReportIncident files a new incident
type ReportIncident struct {
	Title       string
	Description string
}

// ResolveIncident marks an incident resolved
type ResolveIncident struct {
	ID string
}

// RecordLedgerEntry adds an income or expense
type RecordLedgerEntry struct {
	Description string
	Amount      float64
	Kind        string // income or expense
	Date        string // YYYY-MM-DD; today when empty
}

// DeleteLedgerEntry removes a ledger entry
type DeleteLedgerEntry struct {
	ID string
}

// Refresh reloads collections from the service (all when empty)
type Refresh struct {
	Collections []string
}

// Logout ends the session
type Logout struct{}

func (SaveResident) command() string      { return "save_resident" }
func (DeleteResident) command() string    { return "delete_resident" }
func (CreateReservation) command() string { return "create_reservation" }
func (CancelReservation) command() string { return "cancel_reservation" }
func (ReportIncident) command() string    { return "report_incident" }
func (ResolveIncident) command() string   { return "resolve_incident" }
func (RecordLedgerEntry) command() string { return "record_ledger_entry" }
func (DeleteLedgerEntry) command() string { return "delete_ledger_entry" }
func (Refresh) command() string           { return "refresh" }
func (Logout) command() string            { return "logout" }

// mutates reports whether cmd writes to the service
func mutates(cmd Command) bool {
	switch cmd.(type) {
	case Refresh, Logout:
		return false
	}
	return true
}
