package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"soldi/internal/core"
	"soldi/internal/recurrence"
	"soldi/internal/services"
	"soldi/internal/storage"
)

// Handler holds the services the API delegates to.
type Handler struct {
	Rules       *services.RuleService
	Instances   *services.InstanceService
	Projections *services.ProjectionService
}

func NewHandler(rules *services.RuleService, instances *services.InstanceService, projections *services.ProjectionService) *Handler {
	return &Handler{
		Rules:       rules,
		Instances:   instances,
		Projections: projections,
	}
}

// userID extracts the authenticated user from the request. Authentication
// itself happens upstream; this service trusts the X-User-ID header.
func userID(r *http.Request) (int64, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// requireUser wraps a handler with the user-identity check.
func requireUser(next func(w http.ResponseWriter, r *http.Request, userID int64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, ok := userID(r)
		if !ok {
			respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing or invalid X-User-ID header", Category: "unauthorized"})
			return
		}
		next(w, r, uid)
	}
}

func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request, uid int64) {
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}
	rule, err := req.toRule(uid)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	created, generated, err := h.Rules.Create(r.Context(), rule)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusCreated, struct {
		Rule               ruleResponse `json:"rule"`
		GeneratedInstances int          `json:"generated_instances"`
	}{toRuleResponse(created), generated})
}

func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request, uid int64) {
	filters, err := parseRuleFilters(r)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	rules, err := h.Rules.List(r.Context(), uid, filters)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	resp := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		resp = append(resp, toRuleResponse(rule))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request, uid int64) {
	id, err := pathID(r)
	if err != nil {
		respondBadRequest(w, "invalid rule id")
		return
	}

	rule, upcoming, err := h.Rules.Get(r.Context(), uid, id)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	instances := make([]instanceResponse, 0, len(upcoming))
	for _, in := range upcoming {
		instances = append(instances, toInstanceResponse(in))
	}
	respondJSON(w, http.StatusOK, struct {
		Rule     ruleResponse       `json:"rule"`
		Upcoming []instanceResponse `json:"upcoming"`
	}{toRuleResponse(rule), instances})
}

func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request, uid int64) {
	id, err := pathID(r)
	if err != nil {
		respondBadRequest(w, "invalid rule id")
		return
	}
	var req ruleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid JSON body")
		return
	}
	def, err := req.toRule(uid)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	updated, err := h.Rules.Update(r.Context(), uid, id, def, core.UpdateOptions{
		ApplyToFuture:     req.ApplyToFuture,
		RecreateInstances: req.RecreateInstances,
	})
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, toRuleResponse(updated))
}

// RemoveRule soft-cancels a rule. With ?hard=true the rule and its
// instances are deleted outright.
func (h *Handler) RemoveRule(w http.ResponseWriter, r *http.Request, uid int64) {
	id, err := pathID(r)
	if err != nil {
		respondBadRequest(w, "invalid rule id")
		return
	}

	if r.URL.Query().Get("hard") == "true" {
		if err := h.Rules.Delete(r.Context(), uid, id); err != nil {
			respondError(r.Context(), w, err)
			return
		}
		respondJSON(w, http.StatusNoContent, nil)
		return
	}

	var req removeRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "invalid JSON body")
			return
		}
	}
	err = h.Rules.Remove(r.Context(), uid, id, core.RemoveOptions{
		DeleteInstances:   req.DeleteInstances,
		FutureOnly:        req.FutureOnly,
		PreserveCompleted: req.PreserveCompleted,
	})
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (h *Handler) RuleHistory(w http.ResponseWriter, r *http.Request, uid int64) {
	id, err := pathID(r)
	if err != nil {
		respondBadRequest(w, "invalid rule id")
		return
	}

	records, err := h.Rules.History(r.Context(), uid, id)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	resp := make([]historyResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toHistoryResponse(rec))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) ListInstances(w http.ResponseWriter, r *http.Request, uid int64) {
	filters, err := parseInstanceFilters(r)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	views, err := h.Instances.List(r.Context(), uid, filters)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	resp := make([]instanceResponse, 0, len(views))
	for _, v := range views {
		resp = append(resp, toInstanceViewResponse(v))
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetInstance(w http.ResponseWriter, r *http.Request, uid int64) {
	id, err := pathID(r)
	if err != nil {
		respondBadRequest(w, "invalid instance id")
		return
	}

	row, err := h.Instances.Get(r.Context(), uid, id)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, toInstanceRowResponse(row))
}

func (h *Handler) CompleteInstance(w http.ResponseWriter, r *http.Request, uid int64) {
	id, err := pathID(r)
	if err != nil {
		respondBadRequest(w, "invalid instance id")
		return
	}
	ov, ok := decodeOverrides(w, r)
	if !ok {
		return
	}

	instance, err := h.Instances.Complete(r.Context(), uid, id, ov)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, toInstanceResponse(instance))
}

func (h *Handler) CreateTransactionFromInstance(w http.ResponseWriter, r *http.Request, uid int64) {
	id, err := pathID(r)
	if err != nil {
		respondBadRequest(w, "invalid instance id")
		return
	}
	ov, ok := decodeOverrides(w, r)
	if !ok {
		return
	}

	instance, tx, err := h.Instances.CreateTransactionFromInstance(r.Context(), uid, id, ov)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusCreated, struct {
		Instance      instanceResponse `json:"instance"`
		TransactionID int64            `json:"transaction_id"`
	}{toInstanceResponse(instance), tx.ID})
}

func (h *Handler) SkipInstance(w http.ResponseWriter, r *http.Request, uid int64) {
	id, err := pathID(r)
	if err != nil {
		respondBadRequest(w, "invalid instance id")
		return
	}
	var req skipRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "invalid JSON body")
			return
		}
	}

	instance, err := h.Instances.Skip(r.Context(), uid, id, req.Reason)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, toInstanceResponse(instance))
}

func (h *Handler) CardProjection(w http.ResponseWriter, r *http.Request, uid int64) {
	cardID, err := pathID(r)
	if err != nil {
		respondBadRequest(w, "invalid card id")
		return
	}
	from, to, err := parseProjectionRange(r)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	result, err := h.Projections.ProjectedBalance(r.Context(), uid, cardID, from, to)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	respondJSON(w, http.StatusOK, toProjectionResponse(result))
}

func decodeOverrides(w http.ResponseWriter, r *http.Request) (core.CompleteOverrides, bool) {
	var req completeRequest
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "invalid JSON body")
			return core.CompleteOverrides{}, false
		}
	}
	ov, err := req.toOverrides()
	if err != nil {
		respondBadRequest(w, err.Error())
		return core.CompleteOverrides{}, false
	}
	return ov, true
}

func parseRuleFilters(r *http.Request) (storage.RuleFilters, error) {
	var f storage.RuleFilters
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		status := core.RuleStatus(v)
		if !status.Valid() {
			return f, errInvalidQuery("status", v)
		}
		f.Status = &status
	}
	if v := q.Get("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return f, errInvalidQuery("is_active", v)
		}
		f.IsActive = &active
	}
	if v := q.Get("card_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, errInvalidQuery("card_id", v)
		}
		f.CardID = &id
	}
	if v := q.Get("frequency"); v != "" {
		freq := recurrence.Frequency(v)
		f.Frequency = &freq
	}
	return f, nil
}

func parseInstanceFilters(r *http.Request) (storage.InstanceFilters, error) {
	var f storage.InstanceFilters
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		status := core.InstanceStatus(v)
		f.Status = &status
	}
	if v := q.Get("card_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, errInvalidQuery("card_id", v)
		}
		f.CardID = &id
	}
	if v := q.Get("rule_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, errInvalidQuery("rule_id", v)
		}
		f.RuleID = &id
	}
	if v := q.Get("from_date"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return f, errInvalidQuery("from_date", v)
		}
		f.From = &d
	}
	if v := q.Get("to_date"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return f, errInvalidQuery("to_date", v)
		}
		f.To = &d
	}
	// days_ahead is shorthand for from=today, to=today+N.
	if v := q.Get("days_ahead"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errInvalidQuery("days_ahead", v)
		}
		from := core.Today()
		to := core.DateOf(from.AddDate(0, 0, n))
		f.From = &from
		f.To = &to
	}
	return f, nil
}

func parseProjectionRange(r *http.Request) (core.Date, core.Date, error) {
	q := r.URL.Query()
	from := core.Today()
	to := core.DateOf(from.AddDate(0, 0, services.DefaultHorizonDays))

	if v := q.Get("from_date"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return from, to, errInvalidQuery("from_date", v)
		}
		from = d
	}
	if v := q.Get("to_date"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return from, to, errInvalidQuery("to_date", v)
		}
		to = d
	}
	if to.Before(from.Time) {
		return from, to, errInvalidQuery("to_date", "before from_date")
	}
	return from, to, nil
}

type queryError struct {
	param, value string
}

func (e queryError) Error() string {
	return "invalid " + e.param + ": " + e.value
}

func errInvalidQuery(param, value string) error {
	return queryError{param: param, value: value}
}
