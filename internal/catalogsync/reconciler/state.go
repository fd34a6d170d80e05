package reconciler

import (
	"context"
	"errors"

	"github.com/datasud/idgo/internal/common/uuid"
	"github.com/rs/zerolog/log"
)

// State of one reconciliation.
type State string

const (
	StatePending          State = "pending"
	StateGisImported      State = "gis_imported"
	StateValidated        State = "validated"
	StateRemoteOrgEnsured State = "remote_org_ensured"
	StateRemotePublished  State = "remote_published"
	StateLayersReconciled State = "layers_reconciled"
	StateCommitted        State = "committed"
	StateRolledBack       State = "rolled_back"
)

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return s == StateCommitted || s == StateRolledBack
}

// Outcome reports how a reconciliation went.
type Outcome struct {
	State State
	Trace []State // every state reached, in order
	// Compensated lists the compensations that ran on rollback, in the order they ran.
	Compensated []string
	// Skipped is set when the published metadata did not change since the
	// last synchronization and the catalog document was left alone.
	Skipped bool
}

type compensation struct {
	name string
	fn   func(ctx context.Context) error
}

// step moves a reconciliation to the next state when do succeeds.
type step struct {
	to State
	do func(ctx context.Context) error
}

// run drives one reconciliation through its states.
type run struct {
	entity  string
	id      uuid.UUID
	outcome Outcome
	undo    []compensation
}

func newRun(entity string, id uuid.UUID) *run {
	return &run{
		entity:  entity,
		id:      id,
		outcome: Outcome{State: StatePending, Trace: []State{StatePending}},
	}
}

// compensate registers the undo of a remote object created by the current invocation.
func (r *run) compensate(name string, fn func(ctx context.Context) error) {
	r.undo = append(r.undo, compensation{name: name, fn: fn})
}

func (r *run) advance(ctx context.Context, to State) {
	log.Ctx(ctx).Debug().Str("entity", r.entity).Str("id", r.id.String()).
		Str("from", string(r.outcome.State)).Str("to", string(to)).Msg("state transition")
	r.outcome.State = to
	r.outcome.Trace = append(r.outcome.Trace, to)
}

// exec runs the steps in order. The first failure rolls the run back and is
// returned unchanged.
func (r *run) exec(ctx context.Context, steps ...step) error {
	for _, s := range steps {
		if r.outcome.State.IsTerminal() {
			return errors.New("reconciliation already finished")
		}
		if err := s.do(ctx); err != nil {
			r.rollback(ctx, err)
			return err
		}
		r.advance(ctx, s.to)
	}
	return nil
}

// rollback runs the registered compensations, newest first. Compensation
// failures are logged: the original error is what the caller gets.
func (r *run) rollback(ctx context.Context, cause error) {
	ctx = context.WithoutCancel(ctx)
	for i := len(r.undo) - 1; i >= 0; i-- {
		c := r.undo[i]
		if err := c.fn(ctx); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("entity", r.entity).Str("id", r.id.String()).
				Str("compensation", c.name).Msg("compensation failed")
		} else {
			log.Ctx(ctx).Warn().Str("entity", r.entity).Str("id", r.id.String()).
				Str("compensation", c.name).AnErr("cause", cause).Msg("compensated")
		}
		r.outcome.Compensated = append(r.outcome.Compensated, c.name)
	}
	r.undo = nil
	r.advance(ctx, StateRolledBack)
}
