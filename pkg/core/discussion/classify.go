package discussion

import (
	"strings"
)

// Kind is the coarse role of an utterance in the conversation.
type Kind string

const (
	KindQuestion  Kind = "question"
	KindAnswer    Kind = "answer"
	KindStatement Kind = "statement"
)

// Interrogatives that always open a yes/no question when they lead the
// sentence.
var strongOpeners = wordSet(
	"هل", "اهل", "is", "are", "am", "do", "does", "did", "can",
	"could", "may", "might", "will", "would", "should", "shall", "has", "have",
	"had", "was", "were", "isnt", "arent", "dont", "doesnt",
)

// Colloquial openers that make a yes/no question unless a wh-word follows.
var weakOpeners = wordSet(
	"ممكن", "ينفع", "يقدر", "تقدر", "فيه", "في", "عندك", "عندهم", "انت",
	"انتي", "هو", "هي", "يعني", "بجد",
)

// Fixed idioms that pose a binary question with or without a question mark.
var binaryIdioms = phraseList(
	"يتاكل", "يوكل", "بيتاكل", "ينفع ياكل", "صح ولا غلط", "صح أم خطأ", "صح ولا لا",
	"اه ولا لا", "ايوه ولا لا", "نعم أم لا", "نعم او لا", "ولا لا",
	"is it edible", "can you eat", "can it be", "may it be", "true or false", "yes or no",
)

// Words a wh-question starts with; they make a question but never a binary one.
var whOpeners = wordSet(
	"ايه", "ايش", "ماذا", "ما", "مين", "من", "فين", "أين", "امتى",
	"متى", "ليه", "لماذا", "ازاي", "كيف", "كام", "كم", "what", "who",
	"where", "when", "why", "how", "which",
)

// Leading words skipped when looking for the addressee or the interrogative.
var vocatives = wordSet(
	"يا", "ياا", "طيب", "بص", "اسمع", "بقولك", "hey", "ok", "okay",
	"so", "well", "and",
)

// IsYesNoQuestion reports whether text asks for a yes/no answer.
func IsYesNoQuestion(text string) bool {
	n := Normalize(text)
	if n == "" {
		return false
	}
	bare := strings.TrimRight(n, "?!")
	for _, idiom := range binaryIdioms {
		if containsPhrase(bare, idiom) {
			return true
		}
	}
	if !strings.HasSuffix(n, "?") {
		return false
	}
	// The opener may follow a vocative and the addressee's name.
	words := Words(n)
	lead := words[:min(len(words), openerWindow)]
	for _, w := range lead {
		if whOpeners[w] {
			return false
		}
		if strongOpeners[w] {
			return true
		}
	}
	for _, w := range words {
		if whOpeners[w] {
			return false
		}
	}
	for _, w := range lead {
		if weakOpeners[w] {
			return true
		}
	}
	return false
}

// openerWindow is how many leading words are searched for an interrogative.
const openerWindow = 4

// ClassifyContext carries the names the classifier resolves against.
type ClassifyContext struct {
	ActiveAIName      string
	PendingTargetName string
}

// Classification is the annotated reading of one utterance.
type Classification struct {
	Kind               Kind `json:"kind"`
	AddressedToAI      bool `json:"addressedToAi"`
	ExpectsReplyFromAI bool `json:"expectsReplyFromAi"`
	IsBinaryQuestion   bool `json:"isBinaryQuestion"`
}

// answerMaxWords is the length under which an utterance during a pending
// question counts as the answer.
const answerMaxWords = 4

// addressWindow is how many leading words may precede the AI's name.
const addressWindow = 2

// ClassifyUtterance annotates a transcript.
func ClassifyUtterance(text string, cc ClassifyContext) Classification {
	n := Normalize(text)
	if n == "" {
		return Classification{Kind: KindStatement}
	}
	words := Words(n)

	out := Classification{
		IsBinaryQuestion: IsYesNoQuestion(text),
		AddressedToAI:    mentionsNear(words, cc.ActiveAIName, addressWindow),
	}

	isQuestion := out.IsBinaryQuestion || strings.HasSuffix(n, "?") || startsWithWh(words)
	pending := strings.TrimSpace(cc.PendingTargetName) != ""

	switch {
	case pending && !out.AddressedToAI && (len(words) <= answerMaxWords || !isQuestion):
		out.Kind = KindAnswer
	case isQuestion:
		out.Kind = KindQuestion
	default:
		out.Kind = KindStatement
	}
	out.ExpectsReplyFromAI = out.AddressedToAI && out.Kind != KindAnswer
	return out
}

func startsWithWh(words []string) bool {
	for i := 0; i < len(words) && i < 3; i++ {
		if whOpeners[words[i]] {
			return true
		}
		if !vocatives[words[i]] {
			return false
		}
	}
	return false
}

// mentionsNear reports whether name occurs within the first window+len(name)
// words of words, ignoring vocatives.
func mentionsNear(words []string, name string, window int) bool {
	nameWords := Words(Normalize(name))
	if len(nameWords) == 0 || len(words) < len(nameWords) {
		return false
	}
	skipped := 0
	for i := 0; i+len(nameWords) <= len(words); i++ {
		if matchAt(words, i, nameWords) {
			return true
		}
		if !vocatives[words[i]] {
			skipped++
		}
		if skipped > window {
			return false
		}
	}
	return false
}

func matchAt(words []string, i int, name []string) bool {
	for j, w := range name {
		if words[i+j] != w {
			return false
		}
	}
	return true
}

func containsPhrase(text, phrase string) bool {
	padded := " " + text + " "
	return strings.Contains(padded, " "+phrase+" ")
}
