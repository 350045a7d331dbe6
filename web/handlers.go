package web

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"

	"deskpilot/consent"
	"deskpilot/plan"
	"deskpilot/scheduler"
)

// ExecuteRequest carries an untrusted plan plus the free text that produced
// it. The plan is re-validated server side regardless of what the client
// claims about it.
type ExecuteRequest struct {
	UserInput string          `json:"user_input"`
	Plan      json.RawMessage `json:"plan"`
}

// executePlanHandler runs the full pipeline for one submitted plan. The call
// blocks while consent is pending; the decision arrives through
// approvalResponseHandler on another connection.
func (s *Server) executePlanHandler(c rweb.Context) error {
	var req ExecuteRequest
	if err := json.Unmarshal(c.Request().Body(), &req); err != nil {
		return c.WriteError(serr.Wrap(err, "malformed execute request"), 400)
	}
	if len(req.Plan) == 0 {
		return c.WriteError(serr.New("execute request has no plan"), 400)
	}

	p, err := plan.Parse(req.Plan)
	if err != nil {
		return c.WriteError(serr.Wrap(err, "plan rejected"), 422)
	}

	logger.Info("plan submitted", "task", p.Task, "steps", len(p.Steps))

	result := s.coord.Execute(context.Background(), p, req.UserInput, s.pending)
	return c.WriteJSON(result)
}

// planGraphHandler renders the dependency graph of a plan as DOT without
// executing anything. Useful for inspecting what would run in parallel.
func (s *Server) planGraphHandler(c rweb.Context) error {
	p, err := plan.Parse(c.Request().Body())
	if err != nil {
		return c.WriteError(serr.Wrap(err, "plan rejected"), 422)
	}

	dot, err := scheduler.ExportDOT(p.Steps)
	if err != nil {
		return c.WriteError(serr.Wrap(err, "failed to build graph"), 500)
	}
	return c.WriteJSON(map[string]string{"dot": dot})
}

func (s *Server) listApprovalsHandler(c rweb.Context) error {
	return c.WriteJSON(s.pending.Pending())
}

// ApprovalDecision is a human's answer to one pending approval.
type ApprovalDecision struct {
	RequestID string `json:"request_id"`
	Approved  bool   `json:"approved"`
	PIN       string `json:"pin,omitempty"`
}

func (s *Server) approvalResponseHandler(c rweb.Context) error {
	var dec ApprovalDecision
	if err := json.Unmarshal(c.Request().Body(), &dec); err != nil {
		return c.WriteError(serr.Wrap(err, "malformed approval response"), 400)
	}
	if dec.RequestID == "" {
		return c.WriteError(serr.New("request_id is required"), 400)
	}

	err := s.pending.Respond(dec.RequestID, consent.ApprovalResponse{
		Approved: dec.Approved,
		PIN:      dec.PIN,
	})
	if err != nil {
		return c.WriteError(err, 404)
	}
	return c.WriteJSON(map[string]bool{"delivered": true})
}

// KillSwitchRequest toggles the emergency stop.
type KillSwitchRequest struct {
	Active bool   `json:"active"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) killSwitchHandler(c rweb.Context) error {
	var req KillSwitchRequest
	if err := json.Unmarshal(c.Request().Body(), &req); err != nil {
		return c.WriteError(serr.Wrap(err, "malformed kill switch request"), 400)
	}

	if req.Active {
		s.kill.Activate(req.Reason)
	} else {
		s.kill.Deactivate()
	}
	return c.WriteJSON(map[string]bool{"active": s.kill.IsActive()})
}

func (s *Server) auditListHandler(c rweb.Context) error {
	limit := 50
	if q := c.Request().QueryParam("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			return c.WriteError(serr.New("limit must be a positive integer"), 400)
		}
		limit = n
	}

	entries, err := s.log.Read(limit)
	if err != nil {
		return c.WriteError(serr.Wrap(err, "failed to read audit log"), 500)
	}
	return c.WriteJSON(entries)
}

func (s *Server) auditVerifyHandler(c rweb.Context) error {
	err := s.log.Verify()
	if err != nil {
		logger.LogErr(err, "audit chain verification failed")
		return c.WriteJSON(map[string]any{"intact": false, "error": err.Error()})
	}
	return c.WriteJSON(map[string]any{"intact": true})
}
