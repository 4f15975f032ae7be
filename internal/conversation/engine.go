package conversation

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"
)

const defaultMaxAttempts = 5

// Options tunes an Engine.
type Options struct {
	// MaxAttempts is the number of consecutive invalid inputs tolerated at one step.
	MaxAttempts int
	Now         func() time.Time
}

// Engine advances per-user dialogs. Calls for the same user are serialized; calls for
// different users run in parallel.
type Engine struct {
	store       StateStore
	locks       *keyedMutex
	maxAttempts int
	now         func() time.Time
}

// NewEngine builds an engine persisting dialog state in store.
func NewEngine(store StateStore, opts Options) *Engine {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		store:       store,
		locks:       newKeyedMutex(),
		maxAttempts: opts.MaxAttempts,
		now:         opts.Now,
	}
}

// Start begins flow at its first step, replacing any flow the user was in.
func (e *Engine) Start(ctx context.Context, user string, flow Flow) (Outcome, error) {
	steps, ok := flows[flow]
	if !ok || len(steps) == 0 {
		return Outcome{}, fmt.Errorf("start: unknown flow %q", flow)
	}
	unlock := e.locks.Lock(user)
	defer unlock()

	st := State{Flow: flow, Fields: map[string]string{}, UpdatedAt: e.now()}
	if err := e.store.Put(ctx, user, st); err != nil {
		return Outcome{}, fmt.Errorf("save state: %w", err)
	}
	return promptOutcome(st, steps[0], ""), nil
}

// Cancel aborts the active flow, if any.
func (e *Engine) Cancel(ctx context.Context, user string) (Outcome, error) {
	return e.Advance(ctx, user, CancelInput())
}

// Current reports the user's dialog state without changing it.
func (e *Engine) Current(ctx context.Context, user string) (State, bool, error) {
	unlock := e.locks.Lock(user)
	defer unlock()
	return e.store.Get(ctx, user)
}

// Advance consumes exactly one input for user.
func (e *Engine) Advance(ctx context.Context, user string, in Input) (Outcome, error) {
	unlock := e.locks.Lock(user)
	defer unlock()

	st, ok, err := e.store.Get(ctx, user)
	if err != nil {
		return Outcome{}, fmt.Errorf("load state: %w", err)
	}
	if !ok || st.Flow == FlowNone {
		return Outcome{Kind: OutcomeNoActiveFlow, Flow: FlowNone}, nil
	}
	steps := flows[st.Flow]
	if st.Step < 0 || st.Step >= len(steps) {
		if err := e.store.Delete(ctx, user); err != nil {
			return Outcome{}, fmt.Errorf("reset state: %w", err)
		}
		return Outcome{Kind: OutcomeNoActiveFlow, Flow: FlowNone}, nil
	}

	if in.Kind == InputCancel {
		if err := e.store.Delete(ctx, user); err != nil {
			return Outcome{}, fmt.Errorf("reset state: %w", err)
		}
		return Outcome{Kind: OutcomeAborted, Flow: st.Flow, Reason: ReasonCanceled}, nil
	}

	current := steps[st.Step]
	if in.Kind != current.expect(st.Fields) {
		return promptOutcome(st, current, "unexpected_input"), nil
	}

	value, err := current.validate(in)
	if err != nil {
		if !errors.Is(err, ErrValidation) {
			return Outcome{}, err
		}
		st.Attempts++
		if st.Attempts >= e.maxAttempts {
			if err := e.store.Delete(ctx, user); err != nil {
				return Outcome{}, fmt.Errorf("reset state: %w", err)
			}
			return Outcome{Kind: OutcomeAborted, Flow: st.Flow, Reason: ReasonTooManyAttempts}, nil
		}
		st.UpdatedAt = e.now()
		if err := e.store.Put(ctx, user, st); err != nil {
			return Outcome{}, fmt.Errorf("save state: %w", err)
		}
		return promptOutcome(st, current, problemOf(err)), nil
	}

	if st.Fields == nil {
		st.Fields = map[string]string{}
	}
	st.Fields[current.field] = value
	st.Step++
	st.Attempts = 0
	st.UpdatedAt = e.now()

	if st.Step == len(steps) {
		if err := e.store.Delete(ctx, user); err != nil {
			return Outcome{}, fmt.Errorf("reset state: %w", err)
		}
		out := Outcome{Kind: OutcomeCompleted, Flow: st.Flow, Fields: maps.Clone(st.Fields)}
		if in.Kind == InputVoice {
			out.Voice = in.Voice
		}
		return out, nil
	}
	if err := e.store.Put(ctx, user, st); err != nil {
		return Outcome{}, fmt.Errorf("save state: %w", err)
	}
	return promptOutcome(st, steps[st.Step], ""), nil
}

func promptOutcome(st State, s step, problem string) Outcome {
	p := &Prompt{
		Field:   s.field,
		Expect:  s.expect(st.Fields),
		Retry:   problem != "",
		Problem: problem,
	}
	if s.options != nil {
		p.Options = s.options()
	}
	return Outcome{Kind: OutcomePrompt, Flow: st.Flow, Prompt: p, Fields: maps.Clone(st.Fields)}
}
