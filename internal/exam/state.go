package exam

import (
	"sort"

	"github.com/google/uuid"
	"github.com/stemsi/mockmate/internal/model"
)

// IDSet is an unordered set of question ids.
type IDSet map[uuid.UUID]struct{}

// Add inserts id.
func (s IDSet) Add(id uuid.UUID) { s[id] = struct{}{} }

// Remove deletes id.
func (s IDSet) Remove(id uuid.UUID) { delete(s, id) }

// Has reports membership.
func (s IDSet) Has(id uuid.UUID) bool {
	_, ok := s[id]
	return ok
}

// Toggle flips membership and reports whether id is now present.
func (s IDSet) Toggle(id uuid.UUID) bool {
	if s.Has(id) {
		s.Remove(id)
		return false
	}
	s.Add(id)
	return true
}

// Slice returns the members in a stable order.
func (s IDSet) Slice() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// State is the mutable part of an exam session.
type State struct {
	CurrentQuestionIndex int
	Answers              map[uuid.UUID]model.StudentAnswer
	IsSubmitted          bool
	Bookmarked           IDSet
	Visited              IDSet
}

func newState(first *uuid.UUID) State {
	st := State{
		Answers:    make(map[uuid.UUID]model.StudentAnswer),
		Bookmarked: make(IDSet),
		Visited:    make(IDSet),
	}
	if first != nil {
		st.Visited.Add(*first)
	}
	return st
}

// answerList returns answers in display order so results are reproducible.
func (st State) answerList(order []uuid.UUID) []model.StudentAnswer {
	out := make([]model.StudentAnswer, 0, len(st.Answers))
	for _, id := range order {
		if a, ok := st.Answers[id]; ok {
			out = append(out, a)
		}
	}
	return out
}
