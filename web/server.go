// Package web exposes the control surface over HTTP: plan submission,
// pending approvals, the kill switch, and the audit trail.
package web

import (
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"

	"deskpilot/audit"
	"deskpilot/consent"
	"deskpilot/exec"
	"deskpilot/safety"
)

// Server wires the HTTP routes to the pipeline components. All state lives
// in the injected collaborators.
type Server struct {
	coord   *exec.Coordinator
	pending *consent.PendingManager
	kill    *safety.KillSwitch
	log     *audit.Log
}

func NewServer(coord *exec.Coordinator, pending *consent.PendingManager, kill *safety.KillSwitch, log *audit.Log) *Server {
	return &Server{coord: coord, pending: pending, kill: kill, log: log}
}

// Run starts the HTTP server and blocks until it exits.
func (s *Server) Run(address string) error {
	srv := rweb.NewServer(rweb.ServerOptions{
		Address: address,
		Verbose: true,
	})
	srv.Use(rweb.RequestInfo)

	srv.Get("/", s.statusPageHandler)

	srv.Post("/api/plan/execute", s.executePlanHandler)
	srv.Post("/api/plan/graph", s.planGraphHandler)

	srv.Get("/api/approvals", s.listApprovalsHandler)
	srv.Post("/api/approval-response", s.approvalResponseHandler)

	srv.Post("/api/killswitch", s.killSwitchHandler)

	srv.Get("/api/audit", s.auditListHandler)
	srv.Get("/api/audit/verify", s.auditVerifyHandler)

	logger.Info("control surface listening", "address", address)
	return srv.Run()
}
