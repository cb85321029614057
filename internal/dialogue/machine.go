// Package dialogue collects the personal details one question at a time.
//
// Transitions are pure: every call takes a snapshot and returns the next
// snapshot together with the replies to send. Persisting the snapshot is
// the caller's job.
package dialogue

import (
	"fmt"
	"strings"
)

const (
	MsgIntro       = "I'm going to ask some things from you, say cancel to... cancel"
	MsgAllSet      = "All set!"
	MsgCancelled   = "Alrighty"
	MsgForgotten   = "Alrighty, forgetting everything about you"
	MsgIncomplete  = "Looks like I am missing some details from you, say 'fill' to complete them"
	cancelKeyword  = "cancel"
	promptTemplate = "What is your %s?"
)

// Prompt is the question asked for f.
func Prompt(f Field) string {
	return fmt.Sprintf(promptTemplate, f.Label())
}

// IsCancel reports whether text aborts the dialogue.
func IsCancel(text string) bool {
	return strings.ToLower(text) == cancelKeyword
}

// Fill advances the dialogue with one inbound text.
//
// When a field is awaited, text is stored verbatim as its value. The next
// missing field is then asked, preceded by an introduction when the
// dialogue was not running yet. With nothing left to ask the dialogue ends.
func Fill(st State, text string) (State, []string) {
	if IsCancel(text) {
		next, _ := Reset()
		return next, []string{MsgCancelled}
	}

	next := st.Clone()
	if st.Awaiting() {
		next.Details[st.AskingForDetails] = text
	}

	if f, missing := next.NextMissing(); missing {
		var replies []string
		if !st.Awaiting() {
			replies = append(replies, MsgIntro)
		}
		next.AskingForDetails = f
		return next, append(replies, Prompt(f))
	}

	next.AskingForDetails = ""
	return next, []string{MsgAllSet}
}

// Reset forgets every detail and stops any running dialogue.
func Reset() (State, []string) {
	return Empty(), []string{MsgForgotten}
}
