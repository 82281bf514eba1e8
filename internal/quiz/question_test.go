package quiz

import (
	"errors"
	"math/rand"
	"reflect"
	"sort"
	"testing"
)

func TestCorrectnessOf(t *testing.T) {
	mc := Question{Key: ChoiceKey{Options: []string{"Paris", "Lyon"}, Answer: "Paris"}}
	tf := Question{Key: BoolKey{Answer: false}}
	sa := Question{Key: TextKey{Answer: "Photosynthesis"}}
	unknown := Question{Key: DecodeKey("essay", "", "anything", nil)}
	stored := func(answer string) Question { return Question{Key: DecodeKey(TypeTrueFalse, "", answer, nil)} }

	tests := []struct {
		name   string
		q      Question
		answer interface{}
		want   bool
	}{
		{"mc normalized", mc, "  paris ", true},
		{"mc wrong", mc, "Lyon", false},
		{"tf bool", tf, false, true},
		{"tf text", tf, " FALSE", true},
		{"tf wrong", tf, "true", false},
		{"tf stored letter", stored("T"), "t", true},
		{"tf stored digit", stored("1"), "1", true},
		{"tf stored digit vs bool", stored("1"), true, false},
		{"tf stored non-boolean", stored("yes"), "YES", true},
		{"tf stored non-boolean wrong", stored("yes"), "no", false},
		{"short answer", sa, "photosynthesis", true},
		{"unknown type", unknown, "anything", false},
		{"no key", Question{}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CorrectnessOf(tt.q, tt.answer); got != tt.want {
				t.Fatalf("CorrectnessOf = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewKey(t *testing.T) {
	if _, err := NewKey(TypeMultipleChoice, []string{"a", "b"}, "c"); CodeOf(err) != CodeInvalidQuiz {
		t.Fatalf("answer outside options: %v", err)
	}
	if _, err := NewKey(TypeMultipleChoice, nil, "a"); err == nil {
		t.Fatal("choice without options accepted")
	}
	if _, err := NewKey(TypeTrueFalse, nil, "maybe"); err == nil {
		t.Fatal("non-boolean true_false accepted")
	}
	if _, err := NewKey("essay", nil, "x"); err == nil {
		t.Fatal("unknown type accepted")
	}
	k, err := NewKey(TypeTrueFalse, nil, " True ")
	if err != nil || k != (BoolKey{Answer: true, Text: "True"}) || !CorrectnessOf(Question{Key: k}, true) {
		t.Fatalf("key = %#v, %v", k, err)
	}
	k, err = NewKey(TypeMultipleChoice, []string{"A", "B"}, "b")
	if err != nil || k.Canonical() != "b" {
		t.Fatalf("key = %#v, %v", k, err)
	}
}

func TestEncodeDecodeKey(t *testing.T) {
	keys := []AnswerKey{
		ChoiceKey{Options: []string{"x", "y"}, Answer: "y"},
		BoolKey{Answer: true, Text: "true"},
		BoolKey{Answer: true, Text: "T"},
		TextKey{Answer: "free text"},
	}
	for _, k := range keys {
		typ, opts, ans := EncodeKey(k)
		got := DecodeKey(typ, opts, ans, func(msg string) { t.Errorf("unexpected warning: %s", msg) })
		if !reflect.DeepEqual(got, k) {
			t.Errorf("round trip %#v -> %#v", k, got)
		}
	}
}

func TestDecodeKey_Malformed(t *testing.T) {
	var warnings []string
	warn := func(m string) { warnings = append(warnings, m) }

	k := DecodeKey(TypeMultipleChoice, "{broken", "a", warn)
	if ck, ok := k.(ChoiceKey); !ok || ck.Options == nil || len(ck.Options) != 0 {
		t.Fatalf("key = %#v", k)
	}
	k = DecodeKey(TypeTrueFalse, "", "perhaps", warn)
	if k.Type() != TypeTrueFalse || !CorrectnessOf(Question{Key: k}, " Perhaps") || CorrectnessOf(Question{Key: k}, "true") {
		t.Fatalf("non-boolean true_false should match its stored text: %#v", k)
	}
	if len(warnings) != 2 {
		t.Fatalf("warnings = %v", warnings)
	}
}

func TestOptionsOf(t *testing.T) {
	q := Question{Key: ChoiceKey{Options: []string{"a", "b"}}}
	got := OptionsOf(q)
	got[0] = "mutated"
	if OptionsOf(q)[0] != "a" {
		t.Fatal("OptionsOf leaked internal slice")
	}
	if opts := OptionsOf(Question{Key: TextKey{}}); opts == nil || len(opts) != 0 {
		t.Fatalf("non-choice options = %#v", opts)
	}
}

func TestValidateQuiz(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(q *Quiz)
		bad    bool
	}{
		{"valid", func(q *Quiz) {}, false},
		{"unlimited duration", func(q *Quiz) { q.DurationMinutes = 0 }, false},
		{"passing bounds", func(q *Quiz) { q.PassingScore = 100 }, false},
		{"no id", func(q *Quiz) { q.ID = " " }, true},
		{"no course", func(q *Quiz) { q.CourseID = "" }, true},
		{"zero attempts", func(q *Quiz) { q.MaxAttempts = 0 }, true},
		{"passing over 100", func(q *Quiz) { q.PassingScore = 101 }, true},
		{"negative passing", func(q *Quiz) { q.PassingScore = -1 }, true},
		{"negative duration", func(q *Quiz) { q.DurationMinutes = -1 }, true},
		{"bad question", func(q *Quiz) { q.Questions[0].Points = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := twoQuestionQuiz()
			tt.mutate(&q)
			err := ValidateQuiz(q)
			if (err != nil) != tt.bad {
				t.Fatalf("err = %v", err)
			}
			if err != nil && CodeOf(err) != CodeInvalidQuiz {
				t.Fatalf("code = %q", CodeOf(err))
			}
		})
	}
}

func TestValidateQuestions(t *testing.T) {
	ok := Question{ID: "a", Key: TextKey{Answer: "x"}, Points: 1, Position: 1}
	tests := []struct {
		name string
		qs   []Question
		bad  bool
	}{
		{"empty", nil, false},
		{"valid", []Question{ok}, false},
		{"dup id", []Question{ok, {ID: "a", Key: TextKey{}, Position: 2}}, true},
		{"dup position", []Question{ok, {ID: "b", Key: TextKey{}, Position: 1}}, true},
		{"negative points", []Question{{ID: "a", Key: TextKey{}, Points: -1}}, true},
		{"no key", []Question{{ID: "a"}}, true},
		{"no id", []Question{{Key: TextKey{}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuestions(tt.qs)
			if (err != nil) != tt.bad {
				t.Fatalf("err = %v", err)
			}
			var qe *Error
			if err != nil && !errors.As(err, &qe) {
				t.Fatalf("not a quiz error: %v", err)
			}
		})
	}
}

func TestSnapshotOrder_IsPermutation(t *testing.T) {
	var qs []Question
	for i := 0; i < 8; i++ {
		qs = append(qs, Question{ID: string(rune('a' + i)), Position: 8 - i})
	}
	r := rand.New(rand.NewSource(7))
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		order := snapshotOrder(qs, true, r)
		sorted := append([]string(nil), order...)
		sort.Strings(sorted)
		if !reflect.DeepEqual(sorted, []string{"a", "b", "c", "d", "e", "f", "g", "h"}) {
			t.Fatalf("not a permutation: %v", order)
		}
		seen[joined(order)] = true
	}
	if len(seen) < 2 {
		t.Fatal("shuffle produced a single order")
	}
	natural := snapshotOrder(qs, false, r)
	if joined(natural) != "hgfedcba" {
		t.Fatalf("natural order = %v", natural)
	}
}

func TestReplayOrder(t *testing.T) {
	qs := []Question{{ID: "a", Position: 1}, {ID: "b", Position: 2}, {ID: "c", Position: 3}}
	got := replayOrder(qs, []string{"c", "x", "a", "c"})
	var ids []string
	for _, q := range got {
		ids = append(ids, q.ID)
	}
	if joined(ids) != "cab" {
		t.Fatalf("replay = %v", ids)
	}
}

func joined(ss []string) string {
	out := ""
	for _, s := range ss {
		out += s
	}
	return out
}
