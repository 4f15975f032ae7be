package chat

import (
	"fmt"

	"critique-backend/internal/conversation"
)

const (
	msgWelcome         = "Welcome to the TV Channel bot! Choose a section:"
	msgCancelled       = "Operation cancelled."
	msgNothingToCancel = "Nothing to cancel."
	msgTooManyAttempts = "Too many invalid answers. Send /start to begin again."
	msgRegistered      = "Registered! Now pick a program:"
	msgReviewSaved     = "Critique received! Your critique ID is %s"
	msgGameRegistered  = "You are registered for the game as %s."
	msgRegisterFirst   = "Please /start and register first."
	msgUseStart        = "Send /start to see the menu."
	msgUnknownCommand  = "Unknown command. Use /start or /cancel."
	msgApology         = "Unexpected error, please try again later."
)

var fieldPrompts = map[string]string{
	conversation.FieldFirstName:   "Send your first name:",
	conversation.FieldLastName:    "Got it. Now send your last name:",
	conversation.FieldPhone:       "Thanks. Now send your phone number:",
	conversation.FieldProgram:     "Select a TV program to critique:",
	conversation.FieldContentType: "Will you send your critique as text or voice?",
	conversation.FieldPlayerName:  "Send the player name you want to register for the game:",
}

var problemTexts = map[string]string{
	"empty":                "That can't be empty.",
	"too_long":             "That is too long, keep it under 100 characters.",
	"invalid_phone":        "That doesn't look like a phone number.",
	"unknown_program":      "Please pick one of the listed programs.",
	"unknown_content_type": "Please choose text or voice.",
	"empty_voice":          "That voice message was empty.",
	"invalid_duration":     "That voice message looks broken.",
}

func menuReply(prefix string) Reply {
	text := msgWelcome
	if prefix != "" {
		text = prefix + "\n" + msgWelcome
	}
	return Reply{Text: text, Options: []string{MenuCritics, MenuGame}}
}

func promptReply(p *conversation.Prompt, program string) Reply {
	text := fieldPrompts[p.Field]
	if p.Field == conversation.FieldContent {
		text = "Send your critique as a text message:"
		if p.Expect == conversation.InputVoice {
			text = "Send your critique as a voice message:"
		}
		if program != "" {
			text = fmt.Sprintf("%s\nProgram: %s", text, program)
		}
	}
	if p.Retry {
		text = problemText(p) + "\n" + text
	}
	return Reply{Text: text, Options: p.Options}
}

func problemText(p *conversation.Prompt) string {
	if p.Problem == "unexpected_input" {
		switch p.Expect {
		case conversation.InputSelection:
			return "Please choose one of the options."
		case conversation.InputVoice:
			return "Please send a voice message."
		default:
			return "Please send a text message."
		}
	}
	if text, ok := problemTexts[p.Problem]; ok {
		return text
	}
	return "That didn't work."
}
