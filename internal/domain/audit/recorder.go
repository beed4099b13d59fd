// Package audit defines the audit trail written alongside ledger and subscription changes.
package audit

import (
	"context"

	appctx "pharmaledger/internal/core/context"
)

// Action represents the type of audited operation.
type Action string

const (
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionRetire     Action = "retire"
	ActionMovement   Action = "movement"
	ActionRepair     Action = "repair"
	ActionPlanChange Action = "plan_change"
)

// Entry is one audit record. Changes is free-form and serialized by the recorder.
type Entry struct {
	TenantID   string
	EntityType string
	EntityID   string
	Action     Action
	ActorID    string
	Changes    map[string]any
}

// Recorder persists audit entries inside the caller's transaction.
type Recorder interface {
	Record(ctx context.Context, entry Entry) error
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

// Write fills the actor from context and records the entry.
// A nil recorder is treated as Nop.
func Write(ctx context.Context, r Recorder, entry Entry) error {
	if r == nil {
		return nil
	}
	if entry.ActorID == "" {
		entry.ActorID = appctx.GetActorID(ctx)
	}
	return r.Record(ctx, entry)
}
