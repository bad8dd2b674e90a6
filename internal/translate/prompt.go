package translate

import (
	"fmt"

	"github.com/nadzzz/linguabridge/internal/language"
)

// systemPrompt instructs a chat model to behave as a plain translation engine.
func systemPrompt(source, target language.Tag) string {
	from := "the language the user writes in"
	if source != language.Auto && source != language.Unknown {
		from = source.Name()
	}
	return fmt.Sprintf("You are a translation engine. Translate the user's message from %s into %s. "+
		"Reply with the translation only: no quotes, notes, transliteration or explanations. "+
		"Keep names, numbers and emoji unchanged.", from, target.Name())
}
