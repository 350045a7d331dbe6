package consent

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// pendingRequest is one approval waiting for a human response.
type pendingRequest struct {
	Request    ApprovalRequest
	CreatedAt  time.Time
	responseCh chan ApprovalResponse
}

// PendingManager is an Approver backed by a pending-request map and
// per-request response channels. A surface (the HTTP control surface in this
// repo) lists pending requests and posts responses; callers of
// PresentForApproval block until a response arrives or the timeout passes,
// in which case the request is denied.
type PendingManager struct {
	mu       sync.RWMutex
	requests map[string]*pendingRequest
	timeout  time.Duration
}

// DefaultApprovalTimeout bounds how long a plan waits for a human.
const DefaultApprovalTimeout = 60 * time.Second

// NewPendingManager builds a manager with the given response timeout.
func NewPendingManager(timeout time.Duration) *PendingManager {
	if timeout <= 0 {
		timeout = DefaultApprovalTimeout
	}
	return &PendingManager{
		requests: make(map[string]*pendingRequest),
		timeout:  timeout,
	}
}

// PresentForApproval registers the request and blocks for a response.
// Timeout is a denial, not an error the caller could mistake for approval.
func (pm *PendingManager) PresentForApproval(req ApprovalRequest) (ApprovalResponse, error) {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	pending := &pendingRequest{
		Request:    req,
		CreatedAt:  time.Now(),
		responseCh: make(chan ApprovalResponse, 1),
	}

	pm.mu.Lock()
	pm.requests[req.ID] = pending
	pm.mu.Unlock()

	logger.Info("approval pending", "id", req.ID, "task", req.Task, "risk", req.Risk)

	defer func() {
		pm.mu.Lock()
		delete(pm.requests, req.ID)
		pm.mu.Unlock()
	}()

	select {
	case resp := <-pending.responseCh:
		return resp, nil
	case <-time.After(pm.timeout):
		logger.Warn("approval timed out, denying", "id", req.ID, "task", req.Task)
		return ApprovalResponse{Approved: false}, nil
	}
}

// Respond delivers a human decision to a pending request.
func (pm *PendingManager) Respond(requestID string, resp ApprovalResponse) error {
	pm.mu.RLock()
	pending, exists := pm.requests[requestID]
	pm.mu.RUnlock()

	if !exists {
		return serr.New("approval request not found or already resolved")
	}

	select {
	case pending.responseCh <- resp:
		logger.Info("approval response delivered", "id", requestID, "approved", resp.Approved)
		return nil
	default:
		return serr.New("approval request already has a response")
	}
}

// Pending lists requests still waiting for a decision, oldest first.
func (pm *PendingManager) Pending() []ApprovalRequest {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	out := make([]ApprovalRequest, 0, len(pm.requests))
	for _, p := range pm.requests {
		out = append(out, p.Request)
	}
	// Small n; selection order by creation time keeps the surface stable.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if pm.createdAt(out[j].ID).Before(pm.createdAt(out[i].ID)) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

func (pm *PendingManager) createdAt(id string) time.Time {
	if p, ok := pm.requests[id]; ok {
		return p.CreatedAt
	}
	return time.Time{}
}
