package aigrader

import (
	"fmt"
	"strings"
	"unicode"
)

func localFillInTheBlank(answer, word string) (bool, string) {
	if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(word)) {
		return true, "Correct!"
	}
	return false, fmt.Sprintf("Not quite. The expected answer is '%s'.", strings.TrimSpace(word))
}

// localSentence never awards full marks: structure cannot be judged without a model.
func localSentence(word, sentence string) (int, string) {
	sentence = strings.TrimSpace(sentence)
	tokens := strings.FieldsFunc(strings.ToLower(sentence), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\'' && r != '-'
	})

	target := strings.ToLower(strings.TrimSpace(word))
	used := false
	for _, tok := range tokens {
		if tok == target || (strings.HasPrefix(tok, target) && len(tok)-len(target) <= 3) {
			used = true
			break
		}
	}
	if !used {
		return 0, fmt.Sprintf("The sentence does not use the target word '%s'.", word)
	}
	if len(tokens) < 4 {
		return 1, "The sentence is too short to show the meaning of the word."
	}

	first := []rune(sentence)[0]
	last := sentence[len(sentence)-1]
	if !unicode.IsUpper(first) || !strings.ContainsRune(".!?", rune(last)) {
		return 2, "Start the sentence with a capital letter and end it with punctuation."
	}
	return 3, "Good sentence. Try a richer structure, such as a clause, to show the word's meaning."
}
