package survey

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
)

// FieldErrors maps question ids to the reason their answer was rejected.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e[k]
	}
	return fmt.Sprintf("%v: %s", model.ErrValidation, strings.Join(parts, "; "))
}

// Is matches model.ErrValidation.
func (e FieldErrors) Is(target error) bool { return target == model.ErrValidation }

// Normalize converts a raw survey payload into typed answers.
// Nil and empty values are treated as unanswered. Any invalid field fails the whole payload.
func Normalize(raw map[string]any) (model.Answers, error) {
	out := make(model.Answers, len(raw))
	bad := FieldErrors{}
	for id, v := range raw {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" || v == nil {
			continue
		}
		if typed, ok := v.(model.Answer); ok {
			v = answerValue(typed)
		}
		if m, ok := v.(map[string]any); ok {
			v = unwrapTagged(m)
		}
		q, known := Catalogue[id]
		if !known {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				out[id] = model.Text(s)
			}
			continue
		}
		ans, skip, reason := normalizeOne(q, v)
		switch {
		case reason != "":
			bad[id] = reason
		case !skip:
			out[id] = ans
		}
	}
	if len(bad) > 0 {
		return nil, bad
	}
	return out, nil
}

func normalizeOne(q Question, v any) (model.Answer, bool, string) {
	switch q.Kind {
	case model.KindRadio:
		s, ok := v.(string)
		if !ok {
			return model.Answer{}, false, fmt.Sprintf("expected a choice, got %T", v)
		}
		ans := model.Radio(s)
		if ans.Choice == "" {
			return ans, true, ""
		}
		if !slices.Contains(q.Choices, ans.Choice) {
			return ans, false, fmt.Sprintf("unknown choice %q", ans.Choice)
		}
		return ans, false, ""
	case model.KindRange:
		n, empty, err := toInt(v)
		if empty {
			return model.Answer{}, true, ""
		}
		if err != nil {
			return model.Answer{}, false, err.Error()
		}
		if n < q.Min || n > q.Max {
			return model.Answer{}, false, fmt.Sprintf("value %d outside [%d, %d]", n, q.Min, q.Max)
		}
		return model.Range(n), false, ""
	default:
		s, ok := v.(string)
		if !ok {
			return model.Answer{}, false, fmt.Sprintf("expected text, got %T", v)
		}
		ans := model.Text(s)
		return ans, ans.Text == "", ""
	}
}

func toInt(v any) (int, bool, error) {
	switch n := v.(type) {
	case int:
		return n, false, nil
	case int64:
		return int(n), false, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, false, fmt.Errorf("value %v is not a whole number", n)
		}
		// float64(math.MaxInt) rounds up to 2^63, which is already out of range.
		if n < math.MinInt || n >= math.MaxInt {
			return 0, false, fmt.Errorf("value %v is out of range", n)
		}
		return int(n), false, nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, true, nil
		}
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, false, fmt.Errorf("value %q is not a number", s)
		}
		return i, false, nil
	default:
		return 0, false, fmt.Errorf("expected a number, got %T", v)
	}
}

func answerValue(a model.Answer) any {
	switch a.Kind {
	case model.KindRange:
		return a.Value
	case model.KindText:
		return a.Text
	default:
		return a.Choice
	}
}

// unwrapTagged accepts already-typed answers of the form {"kind": ..., "choice"|"value"|"text": ...}.
func unwrapTagged(m map[string]any) any {
	switch model.AnswerKind(fmt.Sprint(m["kind"])) {
	case model.KindRadio:
		return m["choice"]
	case model.KindRange:
		return m["value"]
	case model.KindText:
		return m["text"]
	}
	return m
}

// NewParticipant validates identity fields and normalizes the survey payload.
func NewParticipant(number int, name string, age int, gender, nationality string, raw map[string]any) (model.Participant, error) {
	const op = "survey.NewParticipant"
	if number <= 0 {
		return model.Participant{}, model.NewKind(op, model.ErrValidation, "participant number must be positive, got %d", number)
	}
	if age < 0 {
		return model.Participant{}, model.NewKind(op, model.ErrValidation, "age must not be negative, got %d", age)
	}
	answers, err := Normalize(raw)
	if err != nil {
		return model.Participant{}, model.Wrap(op, err)
	}
	return model.Participant{
		Number:      number,
		Name:        strings.TrimSpace(name),
		Age:         age,
		Gender:      strings.ToLower(strings.TrimSpace(gender)),
		Nationality: strings.TrimSpace(nationality),
		Attended:    true,
		Answers:     answers,
	}, nil
}
