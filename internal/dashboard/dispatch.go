package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erauner12/condoboard/internal/cache"
	"github.com/rs/zerolog/log"
)

// Dispatch runs the handler of cmd. Mutations are applied to the cache at
// once and confirmed in the background: the returned Op resolves when the
// service answers, and a failure is rolled back and shown as a notice
// rather than returned. Errors returned here are rejections before any
// remote call (validation, permission, unknown record) and are also shown
// as notices.
func (s *Session) Dispatch(ctx context.Context, cmd Command) (*cache.Op, error) {
	logger := log.With().Str("command", cmd.command()).Logger()

	if mutates(cmd) && !s.Manager {
		logger.Warn().Str("userId", s.User.ID).Msg("command rejected: not a manager")
		s.Notices.Error("You do not have permission to do that.")
		return nil, ErrPermissionDenied
	}

	var (
		op      *cache.Op
		success string
		err     error
	)
	switch c := cmd.(type) {
	case SaveResident:
		op, success, err = s.saveResident(c)
	case DeleteResident:
		op, success, err = s.deleteResident(c)
	case CreateReservation:
		op, success, err = s.createReservation(c)
	case CancelReservation:
		op, err = s.Cache.Update(Reservations, c.ID, cache.Record{"status": "cancelled"})
		success = "Reservation cancelled."
	case ReportIncident:
		op, success, err = s.reportIncident(c)
	case ResolveIncident:
		op, err = s.Cache.Update(Incidents, c.ID, cache.Record{"status": "resolved"})
		success = "Incident resolved."
	case RecordLedgerEntry:
		op, success, err = s.recordLedgerEntry(c)
	case DeleteLedgerEntry:
		op, err = s.Cache.Delete(Ledger, c.ID)
		success = "Ledger entry deleted."
	case Refresh:
		return nil, s.refresh(ctx, c)
	case Logout:
		return nil, s.Close(ctx)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, cmd)
	}

	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			err = fmt.Errorf("%w: %v", ErrNoSuchRecord, err)
		}
		logger.Warn().Err(err).Msg("command rejected")
		s.Notices.Error(rejection(err))
		return nil, err
	}

	logger.Debug().Str("id", op.ID()).Msg("command applied")
	s.confirm(op, success)
	return op, nil
}

// confirm shows success once op is confirmed; failures are reported by
// the cache
func (s *Session) confirm(op *cache.Op, message string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-op.Done()
		if op.Err() == nil && message != "" {
			s.Notices.Success(message)
		}
	}()
}

func rejection(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		field := strings.ToUpper(verr.Field[:1]) + verr.Field[1:]
		return field + " " + verr.Message + "."
	case errors.Is(err, ErrNoSuchRecord):
		return "That record no longer exists."
	case errors.Is(err, cache.ErrClosed):
		return "The session has ended."
	default:
		return "Something went wrong."
	}
}

func (s *Session) saveResident(c SaveResident) (*cache.Op, string, error) {
	in := c.Input
	creating := c.ID == ""
	if err := in.Validate(creating); err != nil {
		return nil, "", err
	}

	status := in.Status
	if status == "" {
		status = "ok"
	}
	fields := cache.Record{
		"name":   strings.TrimSpace(in.Name),
		"phone":  MaskPhone(in.Phone),
		"type":   strings.TrimSpace(in.Type),
		"unit":   FormatUnit(in.UnitNumber, in.Block),
		"status": status,
		"avatar": AvatarURL(strings.TrimSpace(in.Name)),
	}

	if creating {
		fields["email"] = strings.ToLower(strings.TrimSpace(in.Email))
		fields["role"] = "resident"
		op, err := s.Cache.Create(Residents, fields)
		return op, "Resident registered.", err
	}

	// Edits go through the procedure that keeps profile and account in step
	op, err := s.Cache.Update(Residents, c.ID, fields, cache.WithRemoteUpdate(
		func(ctx context.Context, id string, fields cache.Record) (cache.Record, error) {
			var out cache.Record
			err := s.client.RPC(ctx, "update_resident", map[string]any{"id": id, "fields": fields}, &out)
			return out, err
		}))
	return op, "Resident updated.", err
}

func (s *Session) deleteResident(c DeleteResident) (*cache.Op, string, error) {
	email := strings.ToLower(strings.TrimSpace(c.Email))
	if err := validateEmail(email); err != nil {
		return nil, "", err
	}

	var id string
	for _, r := range s.Cache.Peek(Residents).Records {
		if e, _ := r["email"].(string); strings.EqualFold(e, email) {
			id = cache.IDOf(r)
			break
		}
	}
	if id == "" {
		return nil, "", fmt.Errorf("%w: resident %s", ErrNoSuchRecord, email)
	}

	op, err := s.Cache.Delete(Residents, id, cache.WithRemoteDelete(
		func(ctx context.Context, _ string) error {
			return s.client.RPC(ctx, "delete_account", map[string]any{"email": email}, nil)
		}))
	return op, "Resident removed.", err
}

func (s *Session) createReservation(c CreateReservation) (*cache.Op, string, error) {
	if err := required("area", c.Area); err != nil {
		return nil, "", err
	}
	if err := validateDate("date", c.Date); err != nil {
		return nil, "", err
	}

	fields := cache.Record{
		"area":   strings.TrimSpace(c.Area),
		"date":   c.Date,
		"status": "confirmed",
	}
	if s.Profile != nil {
		fields["resident_id"] = cache.IDOf(s.Profile)
		fields["resident_name"] = s.Profile["name"]
	}
	op, err := s.Cache.Create(Reservations, fields)
	return op, "Reservation confirmed.", err
}

func (s *Session) reportIncident(c ReportIncident) (*cache.Op, string, error) {
	if err := required("title", c.Title); err != nil {
		return nil, "", err
	}

	reporter := s.User.Email
	if s.Profile != nil {
		if name, _ := s.Profile["name"].(string); name != "" {
			reporter = name
		}
	}
	op, err := s.Cache.Create(Incidents, cache.Record{
		"title":       strings.TrimSpace(c.Title),
		"description": strings.TrimSpace(c.Description),
		"status":      "open",
		"reported_by": reporter,
	})
	return op, "Incident reported.", err
}

func (s *Session) recordLedgerEntry(c RecordLedgerEntry) (*cache.Op, string, error) {
	if err := required("description", c.Description); err != nil {
		return nil, "", err
	}
	if c.Amount <= 0 {
		return nil, "", invalid("amount", "must be greater than zero")
	}
	if c.Kind != "income" && c.Kind != "expense" {
		return nil, "", invalid("kind", "must be income or expense")
	}
	date := c.Date
	if date == "" {
		date = time.Now().Format(dateLayout)
	} else if err := validateDate("date", date); err != nil {
		return nil, "", err
	}

	op, err := s.Cache.Create(Ledger, cache.Record{
		"description": strings.TrimSpace(c.Description),
		"amount":      c.Amount,
		"kind":        c.Kind,
		"date":        date,
	})
	return op, "Ledger entry recorded.", err
}

func (s *Session) refresh(ctx context.Context, c Refresh) error {
	collections := c.Collections
	if len(collections) == 0 {
		collections = AllCollections
	}
	if err := s.Cache.RefreshAll(ctx, collections...); err != nil {
		log.Warn().Err(err).Msg("refresh failed")
		if errors.Is(err, cache.ErrClosed) {
			return err
		}
		s.Notices.Error("Could not refresh: " + err.Error())
	}
	return nil
}
