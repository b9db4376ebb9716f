package quiz

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func rawItems(t *testing.T, items ...string) []json.RawMessage {
	t.Helper()
	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		out = append(out, json.RawMessage(it))
	}
	return out
}

func TestParseItem(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr error
		want    Item
	}{
		{name: "not an object", raw: `"cat"`, wantErr: ErrItemNotObject},
		{name: "null", raw: `null`, wantErr: ErrItemNotObject},
		{name: "missing word", raw: `{"definition":"a pet"}`, wantErr: ErrItemNoWord},
		{name: "blank word", raw: `{"word":"   "}`, wantErr: ErrItemNoWord},
		{name: "definition only", raw: `{"word":"cat","definition":"a pet"}`, want: Item{Word: "cat", Definition: "a pet"}},
		{name: "explicit type wins over flags", raw: `{"id":"q1","word":"cat","type":"sentence","blank":true}`, want: Item{ID: "q1", Word: "cat", Kind: TypeSentence}},
		{name: "blank flag", raw: `{"word":"cat","blank":true,"sentence":"The ___ sat."}`, want: Item{Word: "cat", Kind: TypeFillInTheBlank, Prompt: "The ___ sat."}},
		{name: "write flag", raw: `{"word":"cat","write":1}`, want: Item{Word: "cat", Kind: TypeSentence}},
		{name: "false flags", raw: `{"word":"cat","blank":false,"write":0}`, want: Item{Word: "cat"}},
		{name: "unknown type contributes no question", raw: `{"word":"cat","type":"essay","blank":true}`, want: Item{Word: "cat"}},
		{name: "prompt preferred over sentence", raw: `{"word":"cat","type":"fill-in-the-blank","prompt":"A ___.","sentence":"B ___."}`, want: Item{Word: "cat", Kind: TypeFillInTheBlank, Prompt: "A ___."}},
		{name: "placeholder prompt", raw: `{"word":"cat","type":"fill-in-the-blank","prompt":42}`, want: Item{Word: "cat", Kind: TypeFillInTheBlank, Prompt: "___"}},
		{name: "numeric id", raw: `{"id":7,"word":"cat"}`, want: Item{ID: "7", Word: "cat"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseItem(3, json.RawMessage(tc.raw))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				var pe *ParseError
				if !errors.As(err, &pe) || pe.Index != 3 {
					t.Fatalf("expected ParseError at index 3, got %#v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestNormalizeCategorizes(t *testing.T) {
	set := Normalize(rawItems(t,
		`{"id":"a","word":"cat","definition":"a small pet","type":"fill-in-the-blank","prompt":"The ___ purrs."}`,
		`{"word":"cat","definition":"a feline","write":true}`,
		`{"definition":"orphan"}`,
		`[1,2,3]`,
		`{"word":"dog","definition":"a loyal pet"}`,
		`{"word":"bird","blank":"yes"}`,
	))

	if len(set.Definitions) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(set.Definitions))
	}
	if set.Definitions[0].Word != "cat" || set.Definitions[0].Definition != "a small pet" {
		t.Fatalf("first definition should win, got %+v", set.Definitions[0])
	}
	if set.Definitions[1].Word != "dog" {
		t.Fatalf("definition order not preserved: %+v", set.Definitions)
	}

	if len(set.FillInTheBlanks) != 2 {
		t.Fatalf("expected 2 fill-in-the-blank questions, got %d", len(set.FillInTheBlanks))
	}
	first := set.FillInTheBlanks[0]
	if first.ID != "a" || first.CorrectAnswer != "cat" || first.Prompt != "The ___ purrs." {
		t.Fatalf("unexpected first fill question: %+v", first)
	}
	second := set.FillInTheBlanks[1]
	if second.ID != "item-5" || second.Prompt != "___" || second.CorrectAnswer != "bird" {
		t.Fatalf("unexpected defaulted fill question: %+v", second)
	}

	if len(set.Sentences) != 1 {
		t.Fatalf("expected 1 sentence question, got %d", len(set.Sentences))
	}
	if s := set.Sentences[0]; s.ID != "item-1" || s.Word != "cat" || s.Definition != "a feline" {
		t.Fatalf("unexpected sentence question: %+v", s)
	}
}

func TestNormalizeNoDuplicateDefinitions(t *testing.T) {
	set := Normalize(rawItems(t,
		`{"word":"cat","definition":"a pet"}`,
		`{"word":"cat","definition":"a pet"}`,
		`{"word":"cat","definition":"another meaning"}`,
		`{"word":"owl","definition":"a bird"}`,
	))
	seen := map[[2]string]bool{}
	for _, d := range set.Definitions {
		k := [2]string{d.Word, d.Definition}
		if seen[k] {
			t.Fatalf("duplicate definition %v", k)
		}
		seen[k] = true
		if d.Type != TypeDefinition || d.Correct != nil || d.Score != nil {
			t.Fatalf("definition carries grading fields: %+v", d)
		}
	}
	if len(set.Definitions) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(set.Definitions))
	}
}

func TestNormalizeUniqueIDs(t *testing.T) {
	set := Normalize(rawItems(t,
		`{"id":"q","word":"a","blank":true}`,
		`{"id":"q","word":"b","blank":true}`,
		`{"id":"q-1","word":"c","write":true}`,
		`{"word":"d","write":true}`,
	))
	ids := []string{}
	for _, q := range append(set.FillInTheBlanks, set.Sentences...) {
		ids = append(ids, q.ID)
	}
	want := []string{"q", "q-1", "q-1-1", "item-3"}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids got %v, want %v", ids, want)
	}
}

func TestNormalizeDefinitionIDs(t *testing.T) {
	set := Normalize(rawItems(t,
		`{"id":"f1","word":"dog","definition":"barks","blank":true}`,
		`{"id":"definition-dog","word":"cat","write":true}`,
		`{"word":"owl","definition":"hoots"}`,
	))

	ids := map[string]bool{}
	for _, q := range append(append(append([]Question{}, set.Definitions...), set.FillInTheBlanks...), set.Sentences...) {
		if q.ID == "" {
			t.Fatalf("blank id on %+v", q)
		}
		if ids[q.ID] {
			t.Fatalf("id %q used twice", q.ID)
		}
		ids[q.ID] = true
	}
	if set.FillInTheBlanks[0].ID != "f1" || set.Sentences[0].ID != "definition-dog" {
		t.Fatalf("question ids must not shift: %+v %+v", set.FillInTheBlanks, set.Sentences)
	}
	got := []string{set.Definitions[0].ID, set.Definitions[1].ID}
	if want := []string{"definition-dog-1", "definition-owl"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("definition ids got %v, want %v", got, want)
	}
	if !reflect.DeepEqual(set, Normalize(RawItems(set))) {
		t.Fatalf("definition ids not stable across a round trip")
	}
}

func TestNormalizeEmptyAndGarbage(t *testing.T) {
	for _, items := range [][]json.RawMessage{
		nil,
		rawItems(t, `{`, `12`, `"x"`, `{"word":null}`),
	} {
		set := Normalize(items)
		if set.Definitions == nil || set.FillInTheBlanks == nil || set.Sentences == nil {
			t.Fatalf("expected non-nil empty categories")
		}
		if len(set.Definitions)+len(set.FillInTheBlanks)+len(set.Sentences) != 0 {
			t.Fatalf("expected empty set, got %+v", set)
		}
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	inputs := [][]json.RawMessage{
		rawItems(t,
			`{"word":"cat","definition":"a pet","blank":true,"sentence":"The ___ sat."}`,
			`{"word":"cat","definition":"feline","write":true}`,
			`{"word":"sun","definition":"a star","type":"sentence"}`,
			`{"word":"moon","type":"sentence"}`,
			`{"id":"x","word":"sky","definition":"above","type":"fill-in-the-blank"}`,
			`{"word":"tree"}`,
		),
		rawItems(t,
			`{"id":"q","word":"a","blank":true}`,
			`{"id":"q","word":"b","blank":true}`,
		),
	}

	for i, items := range inputs {
		first := Normalize(items)
		second := Normalize(RawItems(first))
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("case %d: round trip mismatch\nfirst=%+v\nsecond=%+v", i, first, second)
		}
		if !reflect.DeepEqual(first, Normalize(items)) {
			t.Fatalf("case %d: normalize is not deterministic", i)
		}
	}
}
