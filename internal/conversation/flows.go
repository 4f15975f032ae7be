package conversation

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"critique-backend/internal/programs"
	"critique-backend/internal/records"
)

const maxNameRunes = 100

type step struct {
	field    string
	expect   func(fields map[string]string) InputKind
	options  func() []string
	validate func(in Input) (string, error)
}

func fixed(kind InputKind) func(map[string]string) InputKind {
	return func(map[string]string) InputKind { return kind }
}

var flows = map[Flow][]step{
	FlowProfile: {
		{field: FieldFirstName, expect: fixed(InputText), validate: textValidator(validateName)},
		{field: FieldLastName, expect: fixed(InputText), validate: textValidator(validateName)},
		{field: FieldPhone, expect: fixed(InputText), validate: textValidator(validatePhone)},
	},
	FlowReview: {
		{field: FieldProgram, expect: fixed(InputSelection), options: programs.All, validate: validateProgram},
		{field: FieldContentType, expect: fixed(InputSelection), options: contentKinds, validate: validateContentKind},
		{field: FieldContent, expect: contentExpectation, validate: validateContent},
	},
	FlowEvent: {
		{field: FieldPlayerName, expect: fixed(InputText), validate: textValidator(validateName)},
	},
}

// Steps returns the field names a flow collects, in order.
func Steps(flow Flow) []string {
	out := make([]string, 0, len(flows[flow]))
	for _, s := range flows[flow] {
		out = append(out, s.field)
	}
	return out
}

func contentKinds() []string {
	return []string{string(records.ContentText), string(records.ContentVoice)}
}

func contentExpectation(fields map[string]string) InputKind {
	if fields[FieldContentType] == string(records.ContentVoice) {
		return InputVoice
	}
	return InputText
}

func textValidator(check func(string) (string, error)) func(Input) (string, error) {
	return func(in Input) (string, error) { return check(in.Text) }
}

func validateName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: empty", ErrValidation)
	}
	if utf8.RuneCountInString(name) > maxNameRunes {
		return "", fmt.Errorf("%w: too_long", ErrValidation)
	}
	return name, nil
}

// validatePhone accepts 4 to 15 digits with common separators.
func validatePhone(raw string) (string, error) {
	phone := strings.TrimSpace(raw)
	digits := 0
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune("+-(). ", r):
		default:
			return "", fmt.Errorf("%w: invalid_phone", ErrValidation)
		}
	}
	if digits < 4 || digits > 15 {
		return "", fmt.Errorf("%w: invalid_phone", ErrValidation)
	}
	return phone, nil
}

func validateProgram(in Input) (string, error) {
	if !programs.Valid(in.Selection) {
		return "", fmt.Errorf("%w: unknown_program", ErrValidation)
	}
	return in.Selection, nil
}

func validateContentKind(in Input) (string, error) {
	kind, ok := records.ParseContentKind(in.Selection)
	if !ok {
		return "", fmt.Errorf("%w: unknown_content_type", ErrValidation)
	}
	return string(kind), nil
}

func validateContent(in Input) (string, error) {
	if in.Kind == InputVoice {
		if in.Voice == nil || len(in.Voice.Data) == 0 {
			return "", fmt.Errorf("%w: empty_voice", ErrValidation)
		}
		if in.Voice.Duration < 0 {
			return "", fmt.Errorf("%w: invalid_duration", ErrValidation)
		}
		// The recording stays on Outcome.Voice; the field holds its duration in seconds.
		return strconv.Itoa(in.Voice.Duration), nil
	}
	if strings.TrimSpace(in.Text) == "" {
		return "", fmt.Errorf("%w: empty", ErrValidation)
	}
	return in.Text, nil
}

// problemOf extracts the short code after the ErrValidation prefix.
func problemOf(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}
