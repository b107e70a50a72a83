package moves

import (
	"slices"

	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
)

// apply performs ch on a copy of arr and returns it with the indexes of the
// groups whose membership or order changed. Scores are not recomputed.
func apply(op string, arr model.Arrangement, ch *model.Change) (model.Arrangement, []int, error) {
	if ch.Participant <= 0 {
		return arr, nil, model.NewKind(op, model.ErrValidation, "participant number must be positive")
	}
	from := arr.GroupOf(ch.Participant)
	if from < 0 {
		return arr, nil, model.NewKind(op, model.ErrNotFound, "participant %d is not seated", ch.Participant)
	}
	if ch.FromGroup != 0 && ch.FromGroup != arr.Groups[from].Number {
		return arr, nil, model.NewKind(op, model.ErrConflict, "participant %d sits in group %d, not %d",
			ch.Participant, arr.Groups[from].Number, ch.FromGroup)
	}
	ch.FromGroup = arr.Groups[from].Number

	next := arr.Clone()
	src := &next.Groups[from]
	seat := slices.Index(src.Participants, ch.Participant)

	switch ch.Kind {
	case model.ChangeSwap:
		to := next.GroupOf(ch.Target)
		if ch.Target <= 0 || to < 0 {
			return arr, nil, model.NewKind(op, model.ErrNotFound, "swap partner %d is not seated", ch.Target)
		}
		if to == from {
			return arr, nil, model.NewKind(op, model.ErrValidation, "participants %d and %d already share group %d",
				ch.Participant, ch.Target, ch.FromGroup)
		}
		if ch.ToGroup != 0 && ch.ToGroup != next.Groups[to].Number {
			return arr, nil, model.NewKind(op, model.ErrConflict, "participant %d sits in group %d, not %d",
				ch.Target, next.Groups[to].Number, ch.ToGroup)
		}
		ch.ToGroup = next.Groups[to].Number
		dst := &next.Groups[to]
		other := slices.Index(dst.Participants, ch.Target)
		src.Participants[seat], dst.Participants[other] = ch.Target, ch.Participant
		return next, []int{from, to}, nil

	case model.ChangeMove:
		to := next.GroupIndex(ch.ToGroup)
		if to < 0 {
			return arr, nil, model.NewKind(op, model.ErrNotFound, "group %d does not exist", ch.ToGroup)
		}
		if to == from {
			return arr, nil, model.NewKind(op, model.ErrValidation, "participant %d is already in group %d",
				ch.Participant, ch.ToGroup)
		}
		dst := &next.Groups[to]
		if !dst.Open() {
			return arr, nil, model.NewKind(op, model.ErrNoCapacity, "group %d has no open seat", ch.ToGroup)
		}
		src.Participants = slices.Delete(src.Participants, seat, seat+1)
		dst.Participants = append(dst.Participants, ch.Participant)
		return next, []int{from, to}, nil

	case model.ChangeReorder:
		if ch.ToGroup != 0 && ch.ToGroup != ch.FromGroup {
			return arr, nil, model.NewKind(op, model.ErrValidation, "reorder stays within group %d", ch.FromGroup)
		}
		ch.ToGroup = ch.FromGroup
		if ch.Position < 0 || ch.Position >= len(src.Participants) {
			return arr, nil, model.NewKind(op, model.ErrValidation, "seat %d is outside group %d", ch.Position, ch.FromGroup)
		}
		src.Participants = slices.Delete(src.Participants, seat, seat+1)
		src.Participants = slices.Insert(src.Participants, ch.Position, ch.Participant)
		return next, []int{from}, nil

	default:
		return arr, nil, model.NewKind(op, model.ErrValidation, "unknown change kind %q", ch.Kind)
	}
}
