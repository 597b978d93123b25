package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/dealerdesk/lead-engine/internal/model"
	"github.com/dealerdesk/lead-engine/internal/repository"
	xhttp "github.com/dealerdesk/lead-engine/pkg/http"
)

type LeadScoreReader interface {
	Latest(ctx context.Context, ref model.LeadRef) (*model.LeadScore, error)
	History(ctx context.Context, ref model.LeadRef, limit int) ([]*model.LeadScore, error)
}

type AssignmentStatusUpdater interface {
	UpdateStatus(ctx context.Context, id int64, to model.AssignmentStatus) (*model.LeadAssignment, error)
	ListByRepresentative(ctx context.Context, repID int64, statuses []model.AssignmentStatus) ([]*model.LeadAssignment, error)
}

// LeadHandler exposes the read side of the scoring pipeline plus the
// representative-facing assignment transitions.
type LeadHandler struct {
	scores      LeadScoreReader
	assignments AssignmentStatusUpdater
}

func RegisterLeadRoutes(e *router.Group, h *LeadHandler) {
	e.GET("/leads/score", h.GetScore)
	e.GET("/leads/score/history", h.GetScoreHistory)
	e.PATCH("/assignments/{id}/status", h.UpdateAssignmentStatus)
	e.GET("/representatives/{id}/assignments", h.ListRepresentativeAssignments)
}

func NewLeadHandler(scores LeadScoreReader, assignments AssignmentStatusUpdater) *LeadHandler {
	return &LeadHandler{scores: scores, assignments: assignments}
}

func leadRefFromQuery(ctx *xhttp.RequestCtx) (model.LeadRef, error) {
	var ref model.LeadRef
	if v := query(ctx, "customer_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return ref, errors.New("invalid customer_id")
		}
		ref.CustomerID = &id
	}
	if v := query(ctx, "inquiry_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return ref, errors.New("invalid inquiry_id")
		}
		ref.InquiryID = &id
	}
	return ref, ref.Validate()
}

func (h *LeadHandler) GetScore(ctx *xhttp.RequestCtx) {
	ref, err := leadRefFromQuery(ctx)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	score, err := h.scores.Latest(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrLeadScoreNotFound) {
			writeError(ctx, 404, "no score recorded for lead")
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, score)
}

func (h *LeadHandler) GetScoreHistory(ctx *xhttp.RequestCtx) {
	ref, err := leadRefFromQuery(ctx)
	if err != nil {
		writeError(ctx, 400, err.Error())
		return
	}
	limit := 20
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil && n > 0 {
			limit = n
		}
	}
	items, err := h.scores.History(ctx, ref, limit)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]any{"items": items})
}

type updateAssignmentStatusRequest struct {
	Status model.AssignmentStatus `json:"status"`
}

func (h *LeadHandler) UpdateAssignmentStatus(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid assignment id")
		return
	}
	var req updateAssignmentStatusRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, 400, "invalid JSON: "+err.Error())
		return
	}
	a, err := h.assignments.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		if errors.Is(err, repository.ErrAssignmentNotFound) {
			writeError(ctx, 404, "assignment not found")
			return
		}
		if errors.Is(err, repository.ErrInvalidTransition) {
			writeError(ctx, 409, err.Error())
			return
		}
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, a)
}

func (h *LeadHandler) ListRepresentativeAssignments(ctx *xhttp.RequestCtx) {
	id, err := pathInt64(ctx, "id")
	if err != nil {
		writeError(ctx, 400, "invalid representative id")
		return
	}
	statuses := []model.AssignmentStatus{
		model.AssignmentStatusActive,
		model.AssignmentStatusContacted,
		model.AssignmentStatusFollowUp,
	}
	if query(ctx, "include_closed") == "true" {
		statuses = nil
	}
	items, err := h.assignments.ListByRepresentative(ctx, id, statuses)
	if err != nil {
		writeError(ctx, 500, err.Error())
		return
	}
	writeJSON(ctx, 200, map[string]any{"items": items})
}
