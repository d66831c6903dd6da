package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Policy decides what happens when a user starts a flow while another one is
// still in progress.
type Policy string

const (
	// PolicyAbandon silently replaces the active flow.
	PolicyAbandon Policy = "abandon"
	// PolicyReject keeps the active flow and refuses the new one.
	PolicyReject Policy = "reject"
)

// ParsePolicy accepts "abandon" or "reject" (case-insensitive).
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyAbandon, PolicyReject:
		return p, nil
	}
	return "", fmt.Errorf("unknown flow start policy %q", s)
}

// ErrFlowActive is returned by Begin under PolicyReject.
var ErrFlowActive = errors.New("another flow is in progress")

// Manager applies the start policy on top of a Store.
type Manager struct {
	Store  Store
	Policy Policy
}

// NewManager returns a manager; an empty policy means PolicyAbandon.
func NewManager(store Store, policy Policy) *Manager {
	if policy == "" {
		policy = PolicyAbandon
	}
	return &Manager{Store: store, Policy: policy}
}

// Current returns the user's flow (IdleFlow if none).
func (m *Manager) Current(ctx context.Context, userID int64) (Flow, error) {
	f, err := m.Store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return IdleFlow{}, nil
	}
	return f, nil
}

// Begin starts a new flow. It returns the flow that was abandoned, if any.
func (m *Manager) Begin(ctx context.Context, userID int64, f Flow) (Flow, error) {
	cur, err := m.Current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !IsIdle(cur) && m.Policy == PolicyReject {
		return nil, ErrFlowActive
	}
	if err := m.Store.Save(ctx, userID, f); err != nil {
		return nil, err
	}
	if IsIdle(cur) {
		return nil, nil
	}
	return cur, nil
}

// Advance replaces the current flow with its next step.
func (m *Manager) Advance(ctx context.Context, userID int64, f Flow) error {
	return m.Store.Save(ctx, userID, f)
}

// Finish returns the user to Idle, discarding accumulated data.
func (m *Manager) Finish(ctx context.Context, userID int64) error {
	return m.Store.Clear(ctx, userID)
}
