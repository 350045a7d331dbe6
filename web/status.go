package web

import (
	"fmt"

	"github.com/rohanthewiz/element"
	"github.com/rohanthewiz/rweb"

	"deskpilot/audit"
	"deskpilot/consent"
	"deskpilot/safety"
)

// statusPageHandler renders a small operator dashboard: kill switch state,
// degraded flag, pending approvals, and the most recent audit entries.
func (s *Server) statusPageHandler(c rweb.Context) error {
	return c.WriteHTML(s.renderStatusPage())
}

func (s *Server) renderStatusPage() string {
	pending := s.pending.Pending()
	entries, _ := s.log.Read(10)

	b := element.NewBuilder()

	b.Html().R(
		b.Head().R(
			b.Title().T("DeskPilot Status"),
			b.Meta("charset", "UTF-8"),
			b.Style().T(statusCSS),
		),
		b.Body().R(
			b.H1().T("DeskPilot"),
			b.Div("class", "panel").R(
				b.H2().T("Safety"),
				b.P().T(fmt.Sprintf("Kill switch: %s", killWord(s.kill))),
				b.P().T(fmt.Sprintf("Audit trail: %s", healthWord(s.coord.Degraded()))),
			),
			b.Div("class", "panel").R(
				b.H2().T(fmt.Sprintf("Pending approvals (%d)", len(pending))),
				b.Ul().R(
					element.ForEach(pending, func(req consent.ApprovalRequest) {
						b.Li().T(fmt.Sprintf("[%s] %s (risk %s)", req.ID, req.Task, req.Risk))
					}),
				),
			),
			b.Div("class", "panel").R(
				b.H2().T("Recent audit entries"),
				b.Ul().R(
					element.ForEach(entries, func(e audit.Entry) {
						b.Li().T(fmt.Sprintf("%s  %s  approved=%v executed=%v",
							e.Timestamp, e.Summary, e.Approved, e.Executed))
					}),
				),
			),
		),
	)

	return b.String()
}

func killWord(k *safety.KillSwitch) string {
	if k.IsActive() {
		if reason := k.Reason(); reason != "" {
			return "ACTIVE (" + reason + ")"
		}
		return "ACTIVE"
	}
	return "inactive"
}

func healthWord(degraded bool) string {
	if degraded {
		return "DEGRADED (high-risk plans suspended)"
	}
	return "healthy"
}

const statusCSS = `
body { font-family: monospace; margin: 2rem; background: #111; color: #ddd; }
h1 { color: #6cf; }
.panel { border: 1px solid #333; padding: 1rem; margin-bottom: 1rem; }
.panel h2 { margin-top: 0; color: #9c9; }
`
