// Package conversation runs the per-user multi-step dialogs that collect a reviewer
// profile, a critique, or a game registration.
package conversation

import (
	"errors"
	"time"
)

// Flow names the dialog a user is in.
type Flow string

const (
	FlowNone    Flow = "none"
	FlowProfile Flow = "registering_profile"
	FlowReview  Flow = "submitting_review"
	FlowEvent   Flow = "registering_event"
)

// InputKind is the shape of one inbound chat input.
type InputKind string

const (
	InputText      InputKind = "text"
	InputVoice     InputKind = "voice"
	InputSelection InputKind = "selection"
	InputCancel    InputKind = "cancel"
)

// Voice is a recorded voice message.
type Voice struct {
	Data     []byte
	Duration int
	MimeType string
}

// Input is exactly one user action.
type Input struct {
	Kind      InputKind
	Text      string
	Selection string
	Voice     *Voice
}

func TextInput(s string) Input      { return Input{Kind: InputText, Text: s} }
func SelectionInput(s string) Input { return Input{Kind: InputSelection, Selection: s} }
func VoiceInput(v Voice) Input      { return Input{Kind: InputVoice, Voice: &v} }
func CancelInput() Input            { return Input{Kind: InputCancel} }

// OutcomeKind tells the caller what to do with an Advance result.
type OutcomeKind string

const (
	OutcomePrompt       OutcomeKind = "prompt"
	OutcomeCompleted    OutcomeKind = "completed"
	OutcomeAborted      OutcomeKind = "aborted"
	OutcomeNoActiveFlow OutcomeKind = "no_active_flow"
)

// Abort reasons.
const (
	ReasonCanceled        = "canceled"
	ReasonTooManyAttempts = "too_many_attempts"
)

// Field names collected by the flows.
const (
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldPhone       = "phone"
	FieldProgram     = "program"
	FieldContentType = "content_type"
	FieldContent     = "content"
	FieldPlayerName  = "player_name"
)

// Prompt describes the input the engine waits for next.
type Prompt struct {
	Field   string
	Expect  InputKind
	Options []string
	// Retry is set when the previous input was rejected; Problem says why.
	Retry   bool
	Problem string
}

// Outcome is the result of one Start or Advance call. Fields holds the values collected
// so far for prompts and all values for completed flows.
type Outcome struct {
	Kind   OutcomeKind
	Flow   Flow
	Prompt *Prompt
	Fields map[string]string
	Voice  *Voice
	Reason string
}

// State is the persisted dialog position of one user.
type State struct {
	Flow      Flow              `json:"flow"`
	Step      int               `json:"step"`
	Fields    map[string]string `json:"fields,omitempty"`
	Attempts  int               `json:"attempts"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Program returns the category chosen during a review flow.
func (s State) Program() string {
	return s.Fields[FieldProgram]
}

// ErrValidation marks an input that was rejected and should be re-prompted.
var ErrValidation = errors.New("invalid input")
