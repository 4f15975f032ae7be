package chat

import (
	"context"
	"fmt"
	"strings"

	"critique-backend/internal/conversation"
	"critique-backend/internal/submissions"
)

// Committer records completed dialogs.
type Committer interface {
	Commit(ctx context.Context, c submissions.Completion) (submissions.Result, error)
	ProfileExists(ctx context.Context, user string) (bool, error)
}

// HandlerFunc handles one chat event.
type HandlerFunc func(ctx context.Context, ev Event) ([]Reply, error)

// Dispatcher routes chat events through the conversation engine and commits finished flows.
type Dispatcher struct {
	engine    *conversation.Engine
	committer Committer
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(engine *conversation.Engine, committer Committer) *Dispatcher {
	return &Dispatcher{engine: engine, committer: committer}
}

// Handle processes ev and returns the replies to send back to the user.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) ([]Reply, error) {
	if err := ev.validate(); err != nil {
		return nil, err
	}
	if ev.Type == EventCommand {
		return d.handleCommand(ctx, ev)
	}

	in, err := ev.input()
	if err != nil {
		return nil, err
	}
	out, err := d.engine.Advance(ctx, ev.UserID, in)
	if err != nil {
		return nil, err
	}
	if out.Kind == conversation.OutcomeNoActiveFlow {
		if ev.Type == EventSelection {
			return d.handleMenu(ctx, ev.UserID, ev.Selection)
		}
		return []Reply{{Text: msgUseStart}}, nil
	}
	return d.handleOutcome(ctx, ev.UserID, out)
}

func (d *Dispatcher) handleCommand(ctx context.Context, ev Event) ([]Reply, error) {
	switch strings.ToLower(strings.TrimSpace(ev.Command)) {
	case CommandStart:
		if _, err := d.engine.Cancel(ctx, ev.UserID); err != nil {
			return nil, err
		}
		return []Reply{menuReply("")}, nil
	case CommandCancel:
		out, err := d.engine.Cancel(ctx, ev.UserID)
		if err != nil {
			return nil, err
		}
		if out.Kind == conversation.OutcomeAborted {
			return []Reply{menuReply(msgCancelled)}, nil
		}
		return []Reply{menuReply(msgNothingToCancel)}, nil
	default:
		return []Reply{{Text: msgUnknownCommand}}, nil
	}
}

func (d *Dispatcher) handleMenu(ctx context.Context, user, selection string) ([]Reply, error) {
	switch selection {
	case MenuCritics:
		registered, err := d.committer.ProfileExists(ctx, user)
		if err != nil {
			return nil, err
		}
		flow := conversation.FlowProfile
		if registered {
			flow = conversation.FlowReview
		}
		return d.start(ctx, user, flow, "")
	case MenuGame:
		return d.start(ctx, user, conversation.FlowEvent, "")
	default:
		return []Reply{menuReply("")}, nil
	}
}

func (d *Dispatcher) start(ctx context.Context, user string, flow conversation.Flow, lead string) ([]Reply, error) {
	out, err := d.engine.Start(ctx, user, flow)
	if err != nil {
		return nil, err
	}
	reply := promptReply(out.Prompt, "")
	if lead != "" {
		reply.Text = lead
	}
	return []Reply{reply}, nil
}

func (d *Dispatcher) handleOutcome(ctx context.Context, user string, out conversation.Outcome) ([]Reply, error) {
	switch out.Kind {
	case conversation.OutcomePrompt:
		return []Reply{promptReply(out.Prompt, out.Fields[conversation.FieldProgram])}, nil
	case conversation.OutcomeAborted:
		if out.Reason == conversation.ReasonTooManyAttempts {
			return []Reply{menuReply(msgTooManyAttempts)}, nil
		}
		return []Reply{menuReply(msgCancelled)}, nil
	case conversation.OutcomeCompleted:
		return d.complete(ctx, user, out)
	default:
		return nil, fmt.Errorf("unexpected outcome %q", out.Kind)
	}
}

func (d *Dispatcher) complete(ctx context.Context, user string, out conversation.Outcome) ([]Reply, error) {
	if out.Flow == conversation.FlowReview {
		registered, err := d.committer.ProfileExists(ctx, user)
		if err != nil {
			return nil, err
		}
		if !registered {
			return []Reply{{Text: msgRegisterFirst}}, nil
		}
	}

	res, err := d.committer.Commit(ctx, submissions.FromOutcome(user, out))
	if err != nil {
		return nil, err
	}

	switch out.Flow {
	case conversation.FlowProfile:
		return d.start(ctx, user, conversation.FlowReview, msgRegistered)
	case conversation.FlowReview:
		return []Reply{{Text: fmt.Sprintf(msgReviewSaved, res.ReceivedID)}}, nil
	case conversation.FlowEvent:
		return []Reply{{Text: fmt.Sprintf(msgGameRegistered, out.Fields[conversation.FieldPlayerName])}}, nil
	default:
		return nil, fmt.Errorf("unexpected flow %q", out.Flow)
	}
}
