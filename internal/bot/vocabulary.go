package bot

import (
	"fmt"
	"strings"

	"derogation-bot/internal/reasons"
)

// Trigger vocabularies, matched against the normalized first word of a message.
var (
	GreetingTriggers   = []string{"hi", "hello"}
	FillTriggers       = []string{"fill"}
	DerogationTriggers = []string{"please", "gimme", "derogation"}
	ResetTriggers      = []string{"reset", "forget"}
)

const (
	MsgGreeting      = "Hi!"
	MsgNotUnderstood = "Hum, not sure I understand"
	MsgWorking       = "Working on it, hang tight..."
	MsgUnexpected    = "Hum something went really wrong... try again!"
)

// sayTxt renders a trigger list as an instruction: "say 'x'" or "say one of 'a', 'b'".
func sayTxt(things []string) string {
	if len(things) <= 1 {
		word := ""
		if len(things) == 1 {
			word = things[0]
		}
		return fmt.Sprintf("say '%s'", word)
	}
	quoted := make([]string, len(things))
	for i, t := range things {
		quoted[i] = "'" + t + "'"
	}
	return "say one of " + strings.Join(quoted, ", ")
}

func validReasons() string {
	return strings.Join(reasons.Words(), ", ")
}

// HelpText is the summary sent after a greeting or an unrecognized message.
func HelpText() []string {
	return []string{
		fmt.Sprintf("For a derogation, %s followed by one of the following reason:\n%s", sayTxt(DerogationTriggers), validReasons()),
		fmt.Sprintf("To make me forget everything I know about you, %s", sayTxt(ResetTriggers)),
		fmt.Sprintf("Otherwise, %s", sayTxt(GreetingTriggers)),
	}
}

func usageText(firstWord string) []string {
	return []string{
		fmt.Sprintf("You need to call this followed by the reason, example: %s %s", firstWord, reasons.Example()),
		fmt.Sprintf("Possible reasons are: %s", validReasons()),
	}
}

func unknownReasonText() string {
	return fmt.Sprintf("This does not seems like a valid reasons. Possible reasons are: %s", validReasons())
}

func contains(vocabulary []string, word string) bool {
	for _, v := range vocabulary {
		if v == word {
			return true
		}
	}
	return false
}
