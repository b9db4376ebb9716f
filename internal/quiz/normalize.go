package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const placeholderPrompt = "___"

const definitionIDPrefix = "definition-"

var (
	ErrItemNotObject = errors.New("item is not an object")
	ErrItemNoWord    = errors.New("item has no word")
)

// ParseError describes why a raw item was dropped by the normalizer.
type ParseError struct {
	Index int
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Item is the typed form of one raw quiz item.
// Kind is empty when the item only contributes a definition.
type Item struct {
	ID         string
	Word       string
	Definition string
	Kind       QuestionType
	Prompt     string
}

// ParseItem converts one raw item. It fails only when the item cannot contribute
// anything at all; every other irregularity is defaulted.
func ParseItem(index int, raw json.RawMessage) (Item, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return Item{}, &ParseError{Index: index, Err: ErrItemNotObject}
	}

	word := stringField(obj, "word")
	if word == "" {
		return Item{}, &ParseError{Index: index, Err: ErrItemNoWord}
	}

	it := Item{
		ID:         idField(obj),
		Word:       word,
		Definition: stringField(obj, "definition"),
		Kind:       itemKind(obj),
	}
	if it.Kind == TypeFillInTheBlank {
		it.Prompt = firstNonEmpty(stringField(obj, "prompt"), stringField(obj, "sentence"), placeholderPrompt)
	}
	return it, nil
}

// Normalize turns raw quiz items into the three question categories.
// Malformed items are skipped, definitions are deduplicated by word with the
// first occurrence winning, and the output depends only on the input. Every
// question id is unique within the set. Definition ids are derived from the
// word and are assigned after the question ids.
func Normalize(rawItems []json.RawMessage) CategorizedQuestionSet {
	out := CategorizedQuestionSet{
		Definitions:     []Question{},
		FillInTheBlanks: []Question{},
		Sentences:       []Question{},
	}

	seenWords := make(map[string]struct{})
	usedIDs := make(map[string]struct{})

	for i, raw := range rawItems {
		it, err := ParseItem(i, raw)
		if err != nil {
			continue
		}

		if it.Definition != "" {
			if _, ok := seenWords[it.Word]; !ok {
				seenWords[it.Word] = struct{}{}
				out.Definitions = append(out.Definitions, Question{
					Type:       TypeDefinition,
					Word:       it.Word,
					Definition: it.Definition,
				})
			}
		}

		switch it.Kind {
		case TypeFillInTheBlank:
			out.FillInTheBlanks = append(out.FillInTheBlanks, Question{
				ID:            uniqueID(usedIDs, it.ID, i),
				Type:          TypeFillInTheBlank,
				Word:          it.Word,
				Prompt:        it.Prompt,
				CorrectAnswer: it.Word,
			})
		case TypeSentence:
			out.Sentences = append(out.Sentences, Question{
				ID:         uniqueID(usedIDs, it.ID, i),
				Type:       TypeSentence,
				Word:       it.Word,
				Definition: it.Definition,
			})
		}
	}

	// Definition ids follow the question ids so they never displace one.
	for i := range out.Definitions {
		out.Definitions[i].ID = uniqueID(usedIDs, definitionIDPrefix+out.Definitions[i].Word, i)
	}
	return out
}

// RawItems renders a categorized set back into raw items such that
// Normalize(RawItems(set)) is equivalent to set.
func RawItems(set CategorizedQuestionSet) []json.RawMessage {
	items := make([]map[string]any, 0, len(set.Definitions)+len(set.FillInTheBlanks)+len(set.Sentences))
	for _, q := range set.Definitions {
		items = append(items, map[string]any{"id": q.ID, "word": q.Word, "definition": q.Definition})
	}
	for _, q := range set.FillInTheBlanks {
		items = append(items, map[string]any{"id": q.ID, "word": q.Word, "type": string(TypeFillInTheBlank), "prompt": q.Prompt})
	}
	for _, q := range set.Sentences {
		item := map[string]any{"id": q.ID, "word": q.Word, "type": string(TypeSentence)}
		if q.Definition != "" {
			item["definition"] = q.Definition
		}
		items = append(items, item)
	}

	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		b, _ := json.Marshal(it)
		out = append(out, b)
	}
	return out
}

func itemKind(obj map[string]any) QuestionType {
	if t, ok := obj["type"].(string); ok && strings.TrimSpace(t) != "" {
		switch QuestionType(strings.TrimSpace(t)) {
		case TypeFillInTheBlank:
			return TypeFillInTheBlank
		case TypeSentence:
			return TypeSentence
		default:
			return ""
		}
	}
	if truthy(obj["blank"]) {
		return TypeFillInTheBlank
	}
	if truthy(obj["write"]) {
		return TypeSentence
	}
	return ""
}

func stringField(obj map[string]any, key string) string {
	s, ok := obj[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

func idField(obj map[string]any) string {
	switch v := obj["id"].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case nil:
		return false
	default:
		return true
	}
}

func uniqueID(used map[string]struct{}, id string, index int) string {
	if id == "" {
		id = "item-" + strconv.Itoa(index)
	}
	candidate := id
	for n := 1; ; n++ {
		if _, ok := used[candidate]; !ok {
			used[candidate] = struct{}{}
			return candidate
		}
		candidate = id + "-" + strconv.Itoa(n)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
