package dashboard

import (
	"context"

	"github.com/erauner12/condoboard/internal/cache"
	"github.com/erauner12/condoboard/internal/feed"
)

// LedgerSummary is the server-computed ledger total
type LedgerSummary struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

// View returns the cached view of collection, revalidating it in the background
func (s *Session) View(collection string) (cache.View, error) {
	return s.Cache.ReadThrough(collection)
}

// Feed builds the activity feed from the cached reservations, incidents
// and ledger entries
func (s *Session) Feed() []feed.Item {
	return feed.Build(s.cfg.Dashboard.FeedLimit,
		feed.Reservations(s.Cache.Peek(Reservations).Records),
		feed.Incidents(s.Cache.Peek(Incidents).Records),
		feed.Ledger(s.Cache.Peek(Ledger).Records),
	)
}

// OccupiedUnits renders the resident count against the building capacity
func (s *Session) OccupiedUnits() string {
	return UnitCounter(len(s.Cache.Peek(Residents).Records), s.cfg.Dashboard.UnitCapacity)
}

// LedgerSummary asks the service for the ledger totals
func (s *Session) LedgerSummary(ctx context.Context) (LedgerSummary, error) {
	var sum LedgerSummary
	err := s.client.Aggregate(ctx, "ledger_summary", &sum)
	return sum, err
}

// ProfileName is the display name of the signed-in resident, falling back
// to the account email
func (s *Session) ProfileName() string {
	if s.Profile != nil {
		if name, _ := s.Profile["name"].(string); name != "" {
			return DisplayName(name)
		}
	}
	return s.User.Email
}

// ProfileRole is the role label of the signed-in resident
func (s *Session) ProfileRole() string {
	if s.Profile == nil {
		return RoleLabel("", "")
	}
	role, _ := s.Profile["role"].(string)
	typ, _ := s.Profile["type"].(string)
	return RoleLabel(role, typ)
}
