package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/erauner12/condoboard/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ============================================================================
// REST handlers for the record collections
// ============================================================================
//
// Endpoints per collection (residents, reservations, incidents, ledger):
// - GET    /rest/v1/<collection>       - List (?field=eq.value, order, limit)
// - POST   /rest/v1/<collection>       - Create (server assigns id)
// - GET    /rest/v1/<collection>/{id}  - Retrieve single
// - PATCH  /rest/v1/<collection>/{id}  - Partial update
// - DELETE /rest/v1/<collection>/{id}  - Soft delete
//
// Every successful write publishes a change event for the collection.
// ============================================================================

const (
	defaultListLimit = 500
	maxListLimit     = 1000
)

// parseListQuery reads order, limit and eq filters from the query string
func parseListQuery(r *http.Request) (store.Query, bool) {
	values := r.URL.Query()
	q := store.Query{
		Order: values.Get("order"),
		Limit: parseLimit(values.Get("limit"), defaultListLimit, maxListLimit),
	}
	for field, vals := range values {
		if field == "order" || field == "limit" || field == "apikey" || len(vals) == 0 {
			continue
		}
		value, ok := strings.CutPrefix(vals[0], "eq.")
		if !ok || !store.ValidField(field) {
			return q, false
		}
		if q.Eq == nil {
			q.Eq = make(map[string]string)
		}
		q.Eq[field] = value
	}
	return q, true
}

func decodeFields(r *http.Request) (store.Record, bool) {
	var fields store.Record
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

// ListRecords handles GET /rest/v1/{collection}
func (s *Server) ListRecords(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	q, ok := parseListQuery(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, codeInvalidInput, "filters must be <field>=eq.<value>")
		return
	}

	items, err := s.Store.List(r.Context(), collection, q)
	if err != nil {
		writeStoreError(w, r, err, "list "+collection)
		return
	}
	if items == nil {
		items = []store.Record{}
	}
	writeJSON(w, http.StatusOK, listResp{Items: items})
}

// CreateRecord handles POST /rest/v1/{collection}
func (s *Server) CreateRecord(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	fields, ok := decodeFields(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, codeInvalidInput, "invalid json body")
		return
	}

	rec, err := s.Store.Insert(r.Context(), collection, fields)
	if err != nil {
		writeStoreError(w, r, err, "create "+collection)
		return
	}

	log.Ctx(r.Context()).Info().Str("collection", collection).Interface("id", rec["id"]).Msg("record created")
	s.Events.Publish(collection, ChangeInsert)
	writeJSON(w, http.StatusCreated, rec)
}

// GetRecord handles GET /rest/v1/{collection}/{id}
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")

	rec, err := s.Store.Get(r.Context(), collection, id)
	if err != nil {
		writeStoreError(w, r, err, "get "+collection)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateRecord handles PATCH /rest/v1/{collection}/{id}
func (s *Server) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")

	fields, ok := decodeFields(r)
	if !ok {
		writeError(w, r, http.StatusBadRequest, codeInvalidInput, "invalid json body")
		return
	}

	rec, err := s.Store.Update(r.Context(), collection, id, fields)
	if err != nil {
		writeStoreError(w, r, err, "update "+collection)
		return
	}

	log.Ctx(r.Context()).Info().Str("collection", collection).Str("id", id).Msg("record updated")
	s.Events.Publish(collection, ChangeUpdate)
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /rest/v1/{collection}/{id}
func (s *Server) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")

	if err := s.Store.Delete(r.Context(), collection, id); err != nil {
		writeStoreError(w, r, err, "delete "+collection)
		return
	}

	log.Ctx(r.Context()).Info().Str("collection", collection).Str("id", id).Msg("record deleted")
	s.Events.Publish(collection, ChangeDelete)
	w.WriteHeader(http.StatusNoContent)
}
