package call

import "unicode"

// script is a coarse writing-system classification used to pick filler and
// apology phrases in the caller's language without a language-detection
// dependency.
type script int

const (
	scriptLatin script = iota
	scriptHebrew
	scriptArabic
	scriptCyrillic
	scriptCJK
)

// detectScript classifies text by its first letter rune. Spoken utterances
// do not mix scripts in practice, so the first letter is enough.
func detectScript(text string) script {
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		switch {
		case unicode.Is(unicode.Hebrew, r):
			return scriptHebrew
		case unicode.Is(unicode.Arabic, r):
			return scriptArabic
		case unicode.Is(unicode.Cyrillic, r):
			return scriptCyrillic
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			return scriptCJK
		default:
			return scriptLatin
		}
	}
	return scriptLatin
}

// fillerPhrase returns a short hold phrase in the script of the user's
// message, spoken while a search or tool call runs.
func fillerPhrase(userText string) string {
	switch detectScript(userText) {
	case scriptHebrew:
		return "רק רגע, אני בודק."
	case scriptArabic:
		return "لحظة من فضلك."
	case scriptCyrillic:
		return "Секунду, проверяю."
	case scriptCJK:
		return "少々お待ちください。"
	default:
		return "One moment, let me check."
	}
}

// apologyPhrase returns a short spoken apology in the script of the user's
// message. Every error path that would otherwise produce silence speaks
// this instead, then returns the turn to idle.
func apologyPhrase(userText string) string {
	switch detectScript(userText) {
	case scriptHebrew:
		return "סליחה, הייתה לי תקלה. אפשר לנסות שוב?"
	case scriptArabic:
		return "عذرًا، حدث خطأ. هل يمكنك المحاولة مرة أخرى؟"
	case scriptCyrillic:
		return "Извините, произошла ошибка. Попробуйте ещё раз."
	case scriptCJK:
		return "申し訳ありません、エラーが発生しました。もう一度お試しください。"
	default:
		return "Sorry, I ran into a problem. Could you try again?"
	}
}

// confirmationPhrases are short utterances that restart a held turn even
// below the hold word floor.
var confirmationPhrases = map[string]struct{}{
	"yes":      {},
	"yeah":     {},
	"yep":      {},
	"go ahead": {},
	"okay":     {},
	"ok":       {},
	"sure":     {},
	"כן":       {},
	"نعم":      {},
	"да":       {},
}
