package model

import "strings"

// AnswerKind tags the shape of an Answer.
type AnswerKind string

const (
	KindRadio AnswerKind = "radio"
	KindText  AnswerKind = "text"
	KindRange AnswerKind = "range"
)

// Answer is a single typed survey response. Only the field matching Kind is meaningful.
type Answer struct {
	Kind   AnswerKind `json:"kind" yaml:"kind"`
	Choice string     `json:"choice,omitempty" yaml:"choice,omitempty"`
	Text   string     `json:"text,omitempty" yaml:"text,omitempty"`
	Value  int        `json:"value,omitempty" yaml:"value,omitempty"`
}

// Radio builds a single-choice answer.
func Radio(choice string) Answer {
	return Answer{Kind: KindRadio, Choice: strings.ToLower(strings.TrimSpace(choice))}
}

// Range builds a numeric scale answer.
func Range(v int) Answer { return Answer{Kind: KindRange, Value: v} }

// Text builds a free text answer.
func Text(s string) Answer { return Answer{Kind: KindText, Text: strings.TrimSpace(s)} }

// Answers maps question ids to typed answers.
type Answers map[string]Answer

// Choice returns the selected option of a radio question.
func (a Answers) Choice(q string) (string, bool) {
	ans, ok := a[q]
	if !ok || ans.Kind != KindRadio || ans.Choice == "" {
		return "", false
	}
	return ans.Choice, true
}

// Range returns the value of a numeric question.
func (a Answers) Range(q string) (int, bool) {
	ans, ok := a[q]
	if !ok || ans.Kind != KindRange {
		return 0, false
	}
	return ans.Value, true
}

// Text returns a free text answer.
func (a Answers) Text(q string) (string, bool) {
	ans, ok := a[q]
	if !ok || ans.Kind != KindText || ans.Text == "" {
		return "", false
	}
	return ans.Text, true
}

// Is reports whether the radio question q was answered with choice.
func (a Answers) Is(q, choice string) bool {
	c, ok := a.Choice(q)
	return ok && c == choice
}
