// Package model contains domain models passed between layers.
package model

// Gender values recognised by the group constraints.
const (
	GenderFemale = "female"
	GenderMale   = "male"
)

// Participant is a registered event attendee with survey answers.
type Participant struct {
	Number      int     `json:"number" yaml:"number"`
	Name        string  `json:"name" yaml:"name"`
	Age         int     `json:"age" yaml:"age"`
	Gender      string  `json:"gender" yaml:"gender"`
	Nationality string  `json:"nationality,omitempty" yaml:"nationality,omitempty"`
	Attended    bool    `json:"attended" yaml:"attended"`
	Answers     Answers `json:"answers" yaml:"answers"`
}

// Roster indexes participants by number.
type Roster map[int]Participant

// NewRoster builds a Roster from a slice; later entries win on duplicate numbers.
func NewRoster(ps []Participant) Roster {
	r := make(Roster, len(ps))
	for _, p := range ps {
		r[p.Number] = p
	}
	return r
}

// Members resolves numbers to participants, skipping unknown ones.
func (r Roster) Members(numbers []int) []Participant {
	out := make([]Participant, 0, len(numbers))
	for _, n := range numbers {
		if p, ok := r[n]; ok {
			out = append(out, p)
		}
	}
	return out
}
