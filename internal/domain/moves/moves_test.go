package moves_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/abdulrahmanalageeli/match-sub002/internal/adapters/repository"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/model"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/moves"
	"github.com/abdulrahmanalageeli/match-sub002/internal/domain/survey"
	"github.com/abdulrahmanalageeli/match-sub002/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// odd numbers are women, even numbers men; everyone can start a conversation
func participant(n int) model.Participant {
	gender := model.GenderMale
	if n%2 == 1 {
		gender = model.GenderFemale
	}
	return model.Participant{
		Number:   n,
		Gender:   gender,
		Age:      30,
		Attended: true,
		Answers:  model.Answers{survey.QRole: model.Radio(survey.RoleInitiator)},
	}
}

type fixture struct {
	ctx      context.Context
	store    *repository.MemStore
	registry *repository.Registry
	manager  *moves.Manager
}

func setup(numbers []int, groups ...[]int) fixture {
	f := fixture{
		ctx:      context.Background(),
		store:    repository.NewMemStore(),
		registry: repository.NewRegistry(),
	}
	for _, n := range numbers {
		So(f.registry.Put(f.ctx, "ev", participant(n)), ShouldBeNil)
	}
	arr := model.Arrangement{EventID: "ev"}
	for i, g := range groups {
		arr.Groups = append(arr.Groups, model.Group{Number: i + 1, Table: i + 1, Participants: g, Capacity: 4})
	}
	_, err := f.store.Replace(f.ctx, arr, 0)
	So(err, ShouldBeNil)
	f.manager = moves.NewManager(f.store, f.registry, moves.WithLogger(logger.NewNop()))
	return f
}

func seq(from, to int) []int {
	var out []int
	for n := from; n <= to; n++ {
		out = append(out, n)
	}
	return out
}

func standard() fixture {
	return setup(seq(1, 19), seq(1, 4), seq(5, 8), seq(9, 12), seq(13, 16), seq(17, 19))
}

func (f fixture) current() model.Arrangement {
	arr, err := f.store.Current(f.ctx, "ev")
	So(err, ShouldBeNil)
	return arr
}

func TestProposeAndCommitMove(t *testing.T) {
	Convey("Given five tables with one open seat at table 5", t, func() {
		f := standard()
		move := model.Change{Kind: model.ChangeMove, Participant: 9, FromGroup: 3, ToGroup: 5}

		Convey("When moving participant 9 from group 3 to group 5 is proposed", func() {
			p, err := f.manager.Propose(f.ctx, "ev", move)
			So(err, ShouldBeNil)

			Convey("Then only the two affected groups are recomputed", func() {
				So(len(p.Current), ShouldEqual, 2)
				So(p.Proposed[0].Participants, ShouldResemble, []int{10, 11, 12})
				So(p.Proposed[1].Participants, ShouldResemble, []int{17, 18, 19, 9})
				So(p.BaseVersion, ShouldEqual, 1)
				So(p.Deltas, ShouldContainKey, 3)
				So(p.Deltas, ShouldContainKey, 5)
			})

			Convey("Then the female cap warning is reported as added", func() {
				So(p.Warnings, ShouldContainKey, 5)
				So(p.Added[5][0].Code, ShouldEqual, model.WarnFemaleCap)
				So(p.Warnings, ShouldNotContainKey, 3)
			})

			Convey("Then nothing is written", func() {
				So(f.current().Version, ShouldEqual, 1)
				So(f.current().Groups[2].Participants, ShouldResemble, []int{9, 10, 11, 12})
			})
		})

		Convey("When the move is committed without override", func() {
			_, err := f.manager.Commit(f.ctx, "ev", move, false)

			Convey("Then it is refused with the constraint report", func() {
				So(errors.Is(err, model.ErrConstraintViolation), ShouldBeTrue)
				var ve *model.ViolationError
				So(errors.As(err, &ve), ShouldBeTrue)
				So(ve.Report[5][0].Code, ShouldEqual, model.WarnFemaleCap)
				So(f.current().Version, ShouldEqual, 1)
			})
		})

		Convey("When the move is committed with override", func() {
			res, err := f.manager.Commit(f.ctx, "ev", move, true)

			Convey("Then group 3 loses and group 5 gains participant 9", func() {
				So(err, ShouldBeNil)
				So(res.Arrangement.Version, ShouldEqual, 2)
				So(res.Arrangement.Label, ShouldEqual, model.LabelCommitted)
				cur := f.current()
				So(cur.Groups[2].Participants, ShouldResemble, []int{10, 11, 12})
				So(cur.Groups[4].Participants, ShouldResemble, []int{17, 18, 19, 9})
				So(cur.Groups[0].Participants, ShouldResemble, seq(1, 4))
				So(cur.Groups[1].Participants, ShouldResemble, seq(5, 8))
				So(cur.Groups[3].Participants, ShouldResemble, seq(13, 16))
				So(len(res.Updated), ShouldEqual, 2)
				So(res.Warnings, ShouldContainKey, 5)
			})

			Convey("Then a second commit based on the old version conflicts", func() {
				again := model.Change{Kind: model.ChangeMove, Participant: 10, ToGroup: 1, BaseVersion: 1}
				_, err := f.manager.Commit(f.ctx, "ev", again, true)
				So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
			})

			Convey("Then a change without a base version skips the version check", func() {
				swap := model.Change{Kind: model.ChangeSwap, Participant: 10, Target: 13}
				res, err := f.manager.Commit(f.ctx, "ev", swap, true)
				So(err, ShouldBeNil)
				So(res.Arrangement.Version, ShouldEqual, 3)
			})

			Convey("Then a change echoing a group the participant left conflicts", func() {
				stale := model.Change{Kind: model.ChangeSwap, Participant: 9, Target: 13, FromGroup: 3}
				_, err := f.manager.Commit(f.ctx, "ev", stale, true)
				So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
			})
		})
	})
}

func TestChangeValidation(t *testing.T) {
	Convey("Given the standard layout", t, func() {
		f := standard()

		Convey("Moving into one's own group is rejected", func() {
			_, err := f.manager.Propose(f.ctx, "ev", model.Change{Kind: model.ChangeMove, Participant: 9, ToGroup: 3})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("Moving into a full group has no capacity", func() {
			_, err := f.manager.Propose(f.ctx, "ev", model.Change{Kind: model.ChangeMove, Participant: 9, ToGroup: 1})
			So(errors.Is(err, model.ErrNoCapacity), ShouldBeTrue)
		})

		Convey("Moving to an unknown group is not found", func() {
			_, err := f.manager.Propose(f.ctx, "ev", model.Change{Kind: model.ChangeMove, Participant: 9, ToGroup: 42})
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("A stale source group is a conflict", func() {
			_, err := f.manager.Commit(f.ctx, "ev", model.Change{Kind: model.ChangeMove, Participant: 9, FromGroup: 2, ToGroup: 5}, true)
			So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
		})

		Convey("Swapping within a group is rejected", func() {
			_, err := f.manager.Propose(f.ctx, "ev", model.Change{Kind: model.ChangeSwap, Participant: 9, Target: 10})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("An unknown kind is rejected", func() {
			_, err := f.manager.Propose(f.ctx, "ev", model.Change{Kind: "teleport", Participant: 9})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})

		Convey("An unseated participant is not found", func() {
			_, err := f.manager.Propose(f.ctx, "ev", model.Change{Kind: model.ChangeMove, Participant: 77, ToGroup: 5})
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestSwapAndReorder(t *testing.T) {
	Convey("Given the standard layout", t, func() {
		f := standard()

		Convey("When two women at different tables swap", func() {
			res, err := f.manager.Commit(f.ctx, "ev", model.Change{Kind: model.ChangeSwap, Participant: 1, Target: 11, BaseVersion: 1}, false)

			Convey("Then the swap commits without warnings and keeps seats", func() {
				So(err, ShouldBeNil)
				So(res.Warnings, ShouldBeEmpty)
				cur := f.current()
				So(cur.Groups[0].Participants, ShouldResemble, []int{11, 2, 3, 4})
				So(cur.Groups[2].Participants, ShouldResemble, []int{9, 10, 1, 12})
				So(cur.Version, ShouldEqual, 2)
			})
		})

		Convey("When a participant changes seat within a group", func() {
			res, err := f.manager.Commit(f.ctx, "ev", model.Change{Kind: model.ChangeReorder, Participant: 4, Position: 0}, false)

			Convey("Then the seat order changes", func() {
				So(err, ShouldBeNil)
				So(res.Arrangement.Groups[0].Participants, ShouldResemble, []int{4, 1, 2, 3})
			})
		})

		Convey("When a seat index is out of range", func() {
			_, err := f.manager.Propose(f.ctx, "ev", model.Change{Kind: model.ChangeReorder, Participant: 4, Position: 4})
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestConcurrentCommits(t *testing.T) {
	Convey("Given many operators committing the same move at once", t, func() {
		f := standard()
		move := model.Change{Kind: model.ChangeMove, Participant: 10, FromGroup: 3, ToGroup: 5, BaseVersion: 1}

		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			wins      int
			conflicts int
		)
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.manager.Commit(f.ctx, "ev", move, true)
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					wins++
				} else if errors.Is(err, model.ErrConflict) {
					conflicts++
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one wins and the rest conflict", func() {
			So(wins, ShouldEqual, 1)
			So(conflicts, ShouldEqual, 7)
			So(f.current().Version, ShouldEqual, 2)
		})
	})
}

func TestAutoPlace(t *testing.T) {
	Convey("Given one full table and two open ones", t, func() {
		// group 2 is all women, group 3 all men
		f := setup(seq(1, 12), seq(1, 4), []int{5, 7, 9}, []int{6, 8, 10})

		Convey("When a woman arrives late", func() {
			res, err := f.manager.AutoPlace(f.ctx, "ev", 11)

			Convey("Then she joins the table where she adds no hard warning", func() {
				So(err, ShouldBeNil)
				cur := f.current()
				So(cur.Groups[2].Participants, ShouldResemble, []int{6, 8, 10, 11})
				So(cur.Groups[1].Participants, ShouldResemble, []int{5, 7, 9})
				So(res.Updated[0].Number, ShouldEqual, 3)
				So(res.Updated[0].Warnings, ShouldBeEmpty)
			})

			Convey("Then placing her again is rejected", func() {
				_, err := f.manager.AutoPlace(f.ctx, "ev", 11)
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When an unknown participant is placed", func() {
			_, err := f.manager.AutoPlace(f.ctx, "ev", 99)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("When an absent participant is placed", func() {
			_, err := f.registry.SetAttendance(f.ctx, "ev", 12, false)
			So(err, ShouldBeNil)
			_, err = f.manager.AutoPlace(f.ctx, "ev", 12)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})
	})

	Convey("Given every table is full", t, func() {
		f := setup(seq(1, 9), seq(1, 4), seq(5, 8))
		_, err := f.manager.AutoPlace(f.ctx, "ev", 9)
		So(errors.Is(err, model.ErrNoCapacity), ShouldBeTrue)
		So(f.current().Version, ShouldEqual, 1)
	})
}

func TestRenumber(t *testing.T) {
	Convey("Given the standard layout", t, func() {
		f := standard()
		before := f.current()

		Convey("When group 3 is renumbered to 7 and back", func() {
			_, err := f.manager.Renumber(f.ctx, "ev", 3, 7)
			So(err, ShouldBeNil)
			So(f.current().GroupIndex(7), ShouldEqual, 2)
			_, err = f.manager.Renumber(f.ctx, "ev", 7, 3)
			So(err, ShouldBeNil)

			Convey("Then the arrangement is unchanged apart from its version", func() {
				after := f.current()
				So(after.Version, ShouldEqual, before.Version+2)
				So(after.Groups, ShouldResemble, before.Groups)
			})
		})

		Convey("Renumbering to the same number is a no-op", func() {
			_, err := f.manager.Renumber(f.ctx, "ev", 3, 3)
			So(err, ShouldBeNil)
			So(f.current().Version, ShouldEqual, before.Version)
		})

		Convey("Renumbering onto a used number conflicts", func() {
			_, err := f.manager.Renumber(f.ctx, "ev", 3, 4)
			So(errors.Is(err, model.ErrConflict), ShouldBeTrue)
		})

		Convey("Renumbering an unknown group is not found", func() {
			_, err := f.manager.Renumber(f.ctx, "ev", 30, 31)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("Non-positive numbers are invalid", func() {
			_, err := f.manager.Renumber(f.ctx, "ev", 3, 0)
			So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
		})
	})
}

func TestSelection(t *testing.T) {
	Convey("Given an empty selection", t, func() {
		var s moves.Selection

		Convey("Toggling the same participant twice deselects", func() {
			_, done := s.Toggle(moves.Pick{Participant: 4, Group: 1})
			So(done, ShouldBeFalse)
			_, ok := s.Selected()
			So(ok, ShouldBeTrue)
			_, done = s.Toggle(moves.Pick{Participant: 4, Group: 1})
			So(done, ShouldBeFalse)
			_, ok = s.Selected()
			So(ok, ShouldBeFalse)
		})

		Convey("Two participants form a swap", func() {
			s.Toggle(moves.Pick{Participant: 4, Group: 1})
			ch, done := s.Toggle(moves.Pick{Participant: 9, Group: 3})
			So(done, ShouldBeTrue)
			So(ch, ShouldResemble, model.Change{Kind: model.ChangeSwap, Participant: 4, FromGroup: 1, ToGroup: 3, Target: 9})
			_, ok := s.Selected()
			So(ok, ShouldBeFalse)
		})

		Convey("A participant and an empty seat form a move", func() {
			s.Toggle(moves.Pick{Participant: 4, Group: 1})
			ch, done := s.Toggle(moves.Pick{Group: 5})
			So(done, ShouldBeTrue)
			So(ch, ShouldResemble, model.Change{Kind: model.ChangeMove, Participant: 4, FromGroup: 1, ToGroup: 5})
		})

		Convey("An empty seat alone selects nothing", func() {
			_, done := s.Toggle(moves.Pick{Group: 5})
			So(done, ShouldBeFalse)
			_, ok := s.Selected()
			So(ok, ShouldBeFalse)
		})
	})
}

func TestFinalize(t *testing.T) {
	Convey("Given an event with a committed arrangement", t, func() {
		f := standard()
		before := f.current()

		Convey("When a new arrangement is finalized", func() {
			next := model.Arrangement{Groups: []model.Group{
				{Number: 1, Table: 1, Participants: []int{1, 2, 3, 4}, Capacity: 4},
				{Number: 2, Table: 2, Participants: []int{5, 7, 9, 11}, Capacity: 4},
				{Number: 3, Table: 3, Participants: []int{6, 8, 10, 12}, Capacity: 4},
				{Number: 4, Table: 4, Participants: seq(13, 16), Capacity: 4},
				{Number: 5, Table: 5, Participants: seq(17, 19), Capacity: 4},
			}}
			res, err := f.manager.Finalize(f.ctx, "ev", next)

			Convey("Then it replaces the committed one with recomputed scores", func() {
				So(err, ShouldBeNil)
				So(res.Arrangement.Version, ShouldEqual, before.Version+1)
				So(res.Arrangement.Label, ShouldEqual, model.LabelCommitted)
				So(res.Arrangement.Seated(), ShouldEqual, 19)
				So(f.current().Groups, ShouldHaveLength, 5)
				So(res.Warnings, ShouldContainKey, 2)
				So(res.Warnings[2][0].Code, ShouldEqual, model.WarnSingleGender)
			})
		})

		Convey("When a participant is seated twice", func() {
			_, err := f.manager.Finalize(f.ctx, "ev", model.Arrangement{Groups: []model.Group{
				{Number: 1, Participants: []int{1, 2}, Capacity: 4},
				{Number: 2, Participants: []int{2, 3}, Capacity: 4},
			}})

			Convey("Then it is rejected", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				So(f.current().Version, ShouldEqual, before.Version)
			})
		})

		Convey("When an unregistered participant is seated", func() {
			_, err := f.manager.Finalize(f.ctx, "ev", model.Arrangement{Groups: []model.Group{
				{Number: 1, Participants: []int{1, 99}, Capacity: 4},
			}})

			Convey("Then it is not found", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When an attending participant is left out", func() {
			_, err := f.manager.Finalize(f.ctx, "ev", model.Arrangement{Groups: []model.Group{
				{Number: 1, Participants: seq(1, 4), Capacity: 4},
			}})

			Convey("Then it is rejected and names the unseated", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "[5 6 7")
				So(f.current().Version, ShouldEqual, before.Version)
			})
		})

		Convey("When an absent participant is seated", func() {
			_, err := f.registry.SetAttendance(f.ctx, "ev", 19, false)
			So(err, ShouldBeNil)
			_, err = f.manager.Finalize(f.ctx, "ev", before)

			Convey("Then it is rejected", func() {
				So(errors.Is(err, model.ErrValidation), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "participant 19 is not attending")
			})
		})

		Convey("When group numbers repeat or there are no groups", func() {
			_, dup := f.manager.Finalize(f.ctx, "ev", model.Arrangement{Groups: []model.Group{
				{Number: 1, Participants: []int{1}, Capacity: 4},
				{Number: 1, Participants: []int{2}, Capacity: 4},
			}})
			_, empty := f.manager.Finalize(f.ctx, "ev", model.Arrangement{})

			Convey("Then both are invalid", func() {
				So(errors.Is(dup, model.ErrValidation), ShouldBeTrue)
				So(errors.Is(empty, model.ErrValidation), ShouldBeTrue)
			})
		})
	})

	Convey("Given an event with nothing committed yet", t, func() {
		f := fixture{ctx: context.Background(), store: repository.NewMemStore(), registry: repository.NewRegistry()}
		for _, n := range seq(1, 4) {
			So(f.registry.Put(f.ctx, "fresh", participant(n)), ShouldBeNil)
		}
		f.manager = moves.NewManager(f.store, f.registry, moves.WithLogger(logger.NewNop()))

		Convey("Then the first finalize creates version 1", func() {
			res, err := f.manager.Finalize(f.ctx, "fresh", model.Arrangement{Groups: []model.Group{
				{Number: 1, Table: 1, Participants: seq(1, 4), Capacity: 4},
			}})
			So(err, ShouldBeNil)
			So(res.Arrangement.Version, ShouldEqual, 1)
			So(res.Arrangement.EventID, ShouldEqual, "fresh")
			So(res.Warnings.Empty(), ShouldBeTrue)
		})
	})
}
