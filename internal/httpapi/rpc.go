package httpapi

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/erauner12/condoboard/internal/auth"
	"github.com/erauner12/condoboard/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// Roles allowed to manage other residents
var managerRoles = map[string]bool{"owner": true, "admin": true}

// CallRPC handles POST /rest/v1/rpc/{name}
func (s *Server) CallRPC(w http.ResponseWriter, r *http.Request) {
	var args map[string]any
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		writeError(w, r, http.StatusBadRequest, codeInvalidInput, "invalid json body")
		return
	}

	switch name := chi.URLParam(r, "name"); name {
	case "delete_account":
		s.deleteAccount(w, r, args)
	case "update_resident":
		s.updateResident(w, r, args)
	default:
		writeError(w, r, http.StatusNotFound, codeNotFound, "unknown procedure "+name)
	}
}

// isManager reports whether the caller's resident profile has a manager role
func (s *Server) isManager(r *http.Request) (bool, error) {
	items, err := s.Store.List(r.Context(), "residents", store.Query{
		Eq:    map[string]string{"email": auth.Email(r.Context())},
		Limit: 1,
	})
	if err != nil || len(items) == 0 {
		return false, err
	}
	role, _ := store.GetString(items[0], "role")
	return managerRoles[role], nil
}

// deleteAccount removes every resident with the email, its login account
// and the account's sessions
func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request, args map[string]any) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	email, _ := store.GetString(args, "email")
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		writeError(w, r, http.StatusBadRequest, codeInvalidInput, "email is required")
		return
	}

	ok, err := s.isManager(r)
	if err != nil {
		writeStoreError(w, r, err, "check permissions")
		return
	}
	if !ok {
		writeError(w, r, http.StatusForbidden, codeForbidden, "only managers can delete accounts")
		return
	}

	residents, err := s.Store.List(ctx, "residents", store.Query{Eq: map[string]string{"email": email}})
	if err != nil {
		writeStoreError(w, r, err, "delete account")
		return
	}
	for _, rec := range residents {
		if err := s.Store.Delete(ctx, "residents", store.Text(rec["id"])); err != nil && !errors.Is(err, store.ErrNotFound) {
			writeStoreError(w, r, err, "delete account")
			return
		}
	}

	account, err := s.Store.AccountByEmail(ctx, email)
	switch {
	case err == nil:
		if err := s.Store.DeleteAccount(ctx, email); err != nil && !errors.Is(err, store.ErrNotFound) {
			writeStoreError(w, r, err, "delete account")
			return
		}
		revoked := s.Sessions.DeleteUserSessions(account.ID)
		logger.Info().Str("userId", account.ID).Int("sessionsRevoked", revoked).Msg("account deleted")
	case !errors.Is(err, store.ErrNotFound):
		writeStoreError(w, r, err, "delete account")
		return
	}

	if len(residents) == 0 && err != nil {
		writeError(w, r, http.StatusNotFound, codeNotFound, "no account for "+email)
		return
	}

	s.Events.Publish("residents", ChangeDelete)
	writeJSON(w, http.StatusOK, map[string]int{"deleted": len(residents)})
}

// updateResident patches a resident: {"id": ..., "fields": {...}}
func (s *Server) updateResident(w http.ResponseWriter, r *http.Request, args map[string]any) {
	id := store.Text(args["id"])
	fields, _ := args["fields"].(map[string]any)
	if id == "" || len(fields) == 0 {
		writeError(w, r, http.StatusBadRequest, codeInvalidInput, "id and fields are required")
		return
	}

	rec, err := s.Store.Update(r.Context(), "residents", id, fields)
	if err != nil {
		writeStoreError(w, r, err, "update resident")
		return
	}
	s.Events.Publish("residents", ChangeUpdate)
	writeJSON(w, http.StatusOK, rec)
}

// LedgerSummary is the result of the ledger_summary aggregate
type LedgerSummary struct {
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
	Balance float64 `json:"balance"`
}

// Aggregate handles GET /rest/v1/aggregate/{name}
func (s *Server) Aggregate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != "ledger_summary" {
		writeError(w, r, http.StatusNotFound, codeNotFound, "unknown aggregate "+name)
		return
	}

	entries, err := s.Store.List(r.Context(), "ledger", store.Query{})
	if err != nil {
		writeStoreError(w, r, err, "summarize ledger")
		return
	}
	writeJSON(w, http.StatusOK, summarize(entries))
}

func summarize(entries []store.Record) LedgerSummary {
	var sum LedgerSummary
	for _, e := range entries {
		amount, ok := number(e["amount"])
		if !ok {
			continue
		}
		if kind, _ := store.GetString(e, "kind"); kind == "expense" {
			sum.Expense += math.Abs(amount)
		} else {
			sum.Income += math.Abs(amount)
		}
	}
	sum.Balance = sum.Income - sum.Expense
	return sum
}

func number(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}
