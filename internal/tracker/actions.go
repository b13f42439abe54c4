package tracker

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"legtracker/internal/logger"
	"legtracker/internal/risk"
	"legtracker/internal/strategy"
)

// SubmitOverride validates and forwards a stop-loss/target edit. A no-op
// submission (value within epsilon of current) is accepted without issuing
// a write. Validation failures block the write and carry the reason.
func (m *Manager) SubmitOverride(ctx context.Context, instanceID, legKey string, typ risk.OverrideType, value float64) error {
	leg, err := m.findLeg(instanceID, legKey)
	if err != nil {
		return err
	}
	decision, err := risk.ValidateOverride(leg, typ, value)
	if err != nil {
		return err
	}
	if decision == risk.DecisionNoop {
		logger.Debugf("tracker: override %s on %s/%s unchanged, no write", typ, instanceID, legKey)
		return nil
	}
	if m.actions == nil {
		return fmt.Errorf("no action client configured")
	}
	if err := m.actions.SubmitOverride(ctx, instanceID, legKey, typ, value); err != nil {
		return err
	}
	logger.Infof("tracker: override %s=%v accepted on %s/%s", typ, value, instanceID, legKey)
	go m.TryRefresh(context.Background())
	return nil
}

// SubmitManualExit validates and forwards a human exit request.
func (m *Manager) SubmitManualExit(ctx context.Context, instanceID, legKey string, exitPrice float64, exitType strategy.ExitType) error {
	leg, err := m.findLeg(instanceID, legKey)
	if err != nil {
		return err
	}
	if err := risk.ValidateManualExit(leg, exitPrice, exitType); err != nil {
		return err
	}
	if m.actions == nil {
		return fmt.Errorf("no action client configured")
	}
	if err := m.actions.SubmitManualExit(ctx, instanceID, legKey, exitPrice, exitType); err != nil {
		return err
	}
	logger.Infof("tracker: manual exit %s@%v accepted on %s/%s", exitType, exitPrice, instanceID, legKey)
	go m.TryRefresh(context.Background())
	return nil
}

// ManualLegRequest is the payload for tracking a new or existing position
// as an extra leg on an instance.
type ManualLegRequest struct {
	Symbol     string   `json:"symbol"`
	Exchange   string   `json:"exchange"`
	Side       string   `json:"side"`
	Quantity   float64  `json:"quantity"`
	EntryPrice *float64 `json:"entry_price,omitempty"`
}

// CreateManualLeg validates the payload and registers the leg. When an
// entry price is supplied the leg tracks an existing position and starts
// IN_POSITION; otherwise it starts IDLE and waits for the engine.
func (m *Manager) CreateManualLeg(ctx context.Context, instanceID string, req ManualLegRequest) (string, error) {
	if _, ok := m.instance(instanceID); !ok {
		return "", fmt.Errorf("instance %s: %w", instanceID, ErrNotFound)
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return "", &risk.InvalidValueError{Field: "symbol"}
	}
	side := strategy.ParseSide(req.Side)
	if side == strategy.SideNone {
		return "", &risk.InvalidValueError{Field: "side"}
	}
	if req.Quantity <= 0 {
		return "", &risk.InvalidValueError{Field: "quantity", Value: req.Quantity}
	}
	if req.EntryPrice != nil && *req.EntryPrice <= 0 {
		return "", &risk.InvalidValueError{Field: "entry_price", Value: *req.EntryPrice}
	}
	if m.actions == nil {
		return "", fmt.Errorf("no action client configured")
	}

	qty := req.Quantity
	leg := strategy.Leg{
		Key:      "manual-" + uuid.NewString(),
		Symbol:   symbol,
		Exchange: strings.ToUpper(strings.TrimSpace(req.Exchange)),
		Side:     side,
		Quantity: &qty,
		Status:   strategy.StatusIdle,
	}
	if req.EntryPrice != nil {
		leg.Status = strategy.StatusInPosition
		leg.EntryPrice = req.EntryPrice
		now := m.nowFn()
		leg.EntryTime = &now
	}
	if err := m.actions.CreateManualLeg(ctx, instanceID, leg); err != nil {
		return "", err
	}
	logger.Infof("tracker: manual leg %s added to %s (%s %s)", leg.Key, instanceID, side, symbol)
	go m.TryRefresh(context.Background())
	return leg.Key, nil
}

// DeleteInstance forwards the destructive delete and, on success, drops the
// instance and its history from the aggregated view immediately so it never
// reappears between refreshes.
func (m *Manager) DeleteInstance(ctx context.Context, instanceID string) error {
	if _, ok := m.instance(instanceID); !ok {
		return fmt.Errorf("instance %s: %w", instanceID, ErrNotFound)
	}
	if m.actions == nil {
		return fmt.Errorf("no action client configured")
	}
	if err := m.actions.DeleteInstance(ctx, instanceID); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.instances, instanceID)
	keys := workingSetKeys(m.instances)
	m.mu.Unlock()
	m.setWorkingSet(keys)
	logger.Infof("tracker: instance %s deleted", instanceID)
	return nil
}

// findLeg copies out the leg so validation never races a snapshot swap.
func (m *Manager) findLeg(instanceID, legKey string) (*strategy.Leg, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.instances[instanceID]
	if !ok {
		return nil, fmt.Errorf("instance %s: %w", instanceID, ErrNotFound)
	}
	leg := in.Leg(legKey)
	if leg == nil {
		return nil, fmt.Errorf("leg %s/%s: %w", instanceID, legKey, ErrNotFound)
	}
	cp := *leg
	return &cp, nil
}
