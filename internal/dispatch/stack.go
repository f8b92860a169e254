package dispatch

import (
	"github.com/emirpasic/gods/v2/lists/arraylist"
)

// modeStack is one ordered sequence of mode references. The untagged stack
// and every keyed slot are independent modeStacks.
type modeStack struct {
	list *arraylist.List[Mode]
}

func newModeStack() *modeStack {
	return &modeStack{list: arraylist.New[Mode]()}
}

func (s *modeStack) push(m Mode) {
	s.list.Add(m)
}

func (s *modeStack) pop() (Mode, bool) {
	n := s.list.Size()
	if n == 0 {
		return nil, false
	}
	m, _ := s.list.Get(n - 1)
	s.list.Remove(n - 1)
	return m, true
}

func (s *modeStack) peek() Mode {
	n := s.list.Size()
	if n == 0 {
		return nil
	}
	m, _ := s.list.Get(n - 1)
	return m
}

func (s *modeStack) size() int {
	return s.list.Size()
}

// at returns the mode at position i in push order (0 is the bottom).
func (s *modeStack) at(i int) Mode {
	m, _ := s.list.Get(i)
	return m
}
