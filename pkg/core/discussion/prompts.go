package discussion

import (
	"fmt"
	"strings"

	"github.com/vango-go/vai-spy/pkg/core/types"
)

// historyLines is how many thread entries are replayed into a prompt.
const historyLines = 12

// PromptContext is the explicit input every prompt builder receives.
type PromptContext struct {
	AIName          string
	Match           types.MatchContext
	Thread          types.Thread
	HumanSimulation bool
}

func (pc PromptContext) arabic() bool {
	return pc.Match.Language == "" || pc.Match.Language == types.LanguageArabic
}

func systemPrompt(pc PromptContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %q, a player in a spoken party game of spies among citizens. ", pc.AIName)
	if pc.Match.Category != "" {
		fmt.Fprintf(&b, "The category is %q. ", pc.Match.Category)
	}
	switch pc.Match.Role {
	case types.RoleSpy:
		b.WriteString("You are a SPY: you do not know the secret word. Blend in and never admit it. ")
		if pc.Match.HintText != "" {
			fmt.Fprintf(&b, "Your hint: %q. ", pc.Match.HintText)
		}
		if len(pc.Match.TeammateNames) > 0 {
			fmt.Fprintf(&b, "Fellow spies: %s. ", strings.Join(pc.Match.TeammateNames, ", "))
		}
	default:
		b.WriteString("You are a CITIZEN. ")
		if pc.Match.SecretWord != "" {
			fmt.Fprintf(&b, "The secret word is %q; never say it outright. ", pc.Match.SecretWord)
		}
	}
	if pc.arabic() {
		b.WriteString("Speak Egyptian Arabic. ")
	} else {
		b.WriteString("Speak English. ")
	}
	if pc.HumanSimulation {
		b.WriteString("Sound like a real person at the table: casual, short, sometimes hesitant. ")
	}
	b.WriteString("Reply with one short spoken line only, no stage directions.")
	if pc.Thread.Summary != "" {
		b.WriteString("\n\nConversation so far:\n")
		b.WriteString(pc.Thread.Summary)
	}
	return b.String()
}

func conversation(pc PromptContext) []types.Message {
	msgs := []types.Message{{Role: types.RoleSystem, Content: systemPrompt(pc)}}
	for _, e := range pc.Thread.Last(historyLines) {
		if e.Speaker == types.SpeakerAI {
			msgs = append(msgs, types.Message{Role: types.RoleAssistant, Content: e.Text})
			continue
		}
		msgs = append(msgs, types.Message{Role: types.RoleUser, Content: AsNamedLine(e.SpeakerName, e.Text)})
	}
	return msgs
}

// DirectedQuestionMessages asks for a question aimed at target.
func DirectedQuestionMessages(pc PromptContext, target string) []types.Message {
	return append(conversation(pc), types.Message{
		Role: types.RoleUser,
		Content: fmt.Sprintf("Ask %s one short question about the secret word that would expose a spy. "+
			"Start by addressing them by name.", target),
	})
}

// InterjectionMessages asks for a brief remark calling out target.
func InterjectionMessages(pc PromptContext, target string) []types.Message {
	return append(conversation(pc), types.Message{
		Role:    types.RoleUser,
		Content: fmt.Sprintf("%s has been vague and hesitant. Say one short line that openly doubts them.", target),
	})
}

// BinaryMessages asks for a strict yes/no verdict on question.
func BinaryMessages(pc PromptContext, question string) []types.Message {
	return append(conversation(pc), types.Message{
		Role: types.RoleUser,
		Content: fmt.Sprintf("Answer the question %q about the secret word truthfully for your role. "+
			"Reply with exactly one word: yes or no.", question),
	})
}

// ReplyMessages asks the AI to answer an utterance directed at it.
func ReplyMessages(pc PromptContext, speaker, text string) []types.Message {
	return append(conversation(pc), types.Message{
		Role:    types.RoleUser,
		Content: AsNamedLine(speaker, text),
	})
}

// RefineMessages asks for a cleaned-up transcript.
func RefineMessages(language, raw string) []types.Message {
	lang := "Egyptian Arabic"
	if language == types.LanguageEnglish {
		lang = "English"
	}
	return []types.Message{
		{Role: types.RoleSystem, Content: "You fix speech-recognition errors in " + lang +
			". Keep the meaning and wording; correct spelling and obvious mishearings only. Output the corrected text only."},
		{Role: types.RoleUser, Content: raw},
	}
}

// BinaryAnswer is a parsed yes/no verdict.
type BinaryAnswer bool

// ParseBinary reads a model verdict. Anything that is not clearly yes is no.
func ParseBinary(text string) BinaryAnswer {
	words := Words(Normalize(text))
	for _, w := range words {
		switch w {
		case "yes", "yeah", "yep", "نعم", "اه", "ايوه", "ايوا", "اكيد", "طبعا":
			return true
		case "no", "nope", "لا", "لاء", "ابدا":
			return false
		}
	}
	return false
}

// Spoken renders the verdict as a short line.
func (a BinaryAnswer) Spoken(language string) string {
	if language == types.LanguageEnglish {
		if a {
			return "Yes."
		}
		return "No."
	}
	if a {
		return "أيوه."
	}
	return "لأ."
}
