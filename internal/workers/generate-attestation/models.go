package generateattestation

import (
	"derogation-bot/internal/dialogue"
	"derogation-bot/internal/reasons"
	deliverdocument "derogation-bot/internal/workers/deliver-document"
)

// Input is one generation request for a session whose details are complete.
type Input struct {
	SessionID string                  `json:"sessionId"`
	Channel   deliverdocument.Channel `json:"channel"`
	Recipient string                  `json:"recipient"`
	Details   dialogue.Details        `json:"details"`
	Reason    reasons.Code            `json:"reason"`
}

// Status is the outcome of one attempt.
type Status string

const (
	StatusDelivered  Status = "delivered"
	StatusNoDownload Status = "no_download"
	StatusFailed     Status = "failed"
	StatusInvalid    Status = "invalid"
)

// Output reports what happened. Message is the text to show the user, empty on success.
type Output struct {
	AttemptID string `json:"attemptId"`
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
	Document  string `json:"document,omitempty"`
}

const (
	MsgNoDownload = "Hum something went wrong... try again!"
	MsgFailed     = "Hum something went really wrong... try again!"
)

// Form control selectors.
const (
	selectorExitDate  = "#field-datesortie"
	selectorExitTime  = "#field-heuresortie"
	selectorGenerate  = "#generate-btn"
	fieldSelectorFmt  = "#field-%s"
	reasonSelectorFmt = "input[type='checkbox'][value='%s']"
)
