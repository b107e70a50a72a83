package moves

import "github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"

// Pick is one operator selection. Participant 0 denotes an empty seat.
type Pick struct {
	Participant int `json:"participant"`
	Group       int `json:"group"`
}

// Selection pairs two operator picks into a change.
// The zero value is ready to use. It is not safe for concurrent use.
type Selection struct {
	first *Pick
}

// Toggle records a pick. Picking the selected participant again deselects it.
// A second pick completes a swap, or a move when it is an empty seat, and
// clears the selection.
func (s *Selection) Toggle(p Pick) (model.Change, bool) {
	if s.first == nil {
		if p.Participant > 0 {
			s.first = &p
		}
		return model.Change{}, false
	}
	first := *s.first
	if p.Participant == first.Participant {
		s.first = nil
		return model.Change{}, false
	}
	s.first = nil
	if p.Participant == 0 {
		return model.Change{Kind: model.ChangeMove, Participant: first.Participant, FromGroup: first.Group, ToGroup: p.Group}, true
	}
	return model.Change{
		Kind:        model.ChangeSwap,
		Participant: first.Participant,
		FromGroup:   first.Group,
		ToGroup:     p.Group,
		Target:      p.Participant,
	}, true
}

// Selected returns the pending pick.
func (s *Selection) Selected() (Pick, bool) {
	if s.first == nil {
		return Pick{}, false
	}
	return *s.first, true
}

// Reset clears the selection.
func (s *Selection) Reset() { s.first = nil }
