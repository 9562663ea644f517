package compiler

import (
	"fmt"
	"sort"
	"strings"

	"irc16/pkg/ir"
)

const (
	MaxScopeDepth  = 16  // frames, including the global frame
	MaxIdentifiers = 256 // slots per frame
)

type Storage int

const (
	Stack  Storage = iota // frame-relative cell
	Static                // cell of the shared data block
)

func (s Storage) String() string {
	if s == Static {
		return "static"
	}
	return "stack"
}

type FrameKind int

const (
	FrameGlobal FrameKind = iota
	FrameScope
	FrameIrq
)

func (k FrameKind) String() string {
	switch k {
	case FrameGlobal:
		return "global"
	case FrameIrq:
		return "irq"
	}
	return "scope"
}

// Identifier is a declared variable.
// Offset is fp-relative for Stack storage (-2, -4, ...) and relative to
// the static data label for Static storage (0, 2, ...).
type Identifier struct {
	Name        string
	Storage     Storage
	Offset      int
	Const       bool
	Anon        bool
	Initialized bool
	Ordinal     int // slot within the declaring frame
	Level       int // depth of the declaring frame
	Pos         ir.Pos
}

type frame struct {
	kind  FrameKind
	names map[string]*Identifier
	slots int // declarations seen, anonymous ones included
	stack int // stack cells allocated
}

// ScopeStack tracks the frames that are open at the current point of the
// emission pass. Level 0 is the global frame and is always present.
type ScopeStack struct {
	frames []*frame
}

func NewScopeStack() *ScopeStack {
	s := &ScopeStack{}
	s.frames = append(s.frames, newFrame(FrameGlobal))
	return s
}

func newFrame(kind FrameKind) *frame {
	return &frame{kind: kind, names: map[string]*Identifier{}}
}

// Depth is the number of open scopes above the global frame.
func (s *ScopeStack) Depth() int {
	return len(s.frames) - 1
}

func (s *ScopeStack) top() *frame {
	return s.frames[len(s.frames)-1]
}

// Kind returns the kind of the innermost frame.
func (s *ScopeStack) Kind() FrameKind {
	return s.top().kind
}

// Enter opens a new frame.
func (s *ScopeStack) Enter(kind FrameKind) error {
	if len(s.frames) >= MaxScopeDepth {
		return fmt.Errorf("%w: %s", ErrScopeOverflow, f("depth limit is %v", MaxScopeDepth-1))
	}
	s.frames = append(s.frames, newFrame(kind))
	return nil
}

// Exit closes the innermost frame and returns its kind. Its identifiers
// are dropped; static data cells stay allocated.
func (s *ScopeStack) Exit() (FrameKind, error) {
	if s.Depth() == 0 {
		return FrameGlobal, ErrScopeUnbalanced
	}
	kind := s.top().kind
	s.frames = s.frames[:len(s.frames)-1]
	return kind, nil
}

// Declare enters id into the innermost frame. Level and Ordinal are
// assigned here, and so is Offset for Stack storage. An anonymous
// declaration takes a slot but cannot be looked up.
func (s *ScopeStack) Declare(id Identifier) (*Identifier, error) {
	fr := s.top()
	if fr.slots >= MaxIdentifiers {
		return nil, fmt.Errorf("%w: %s", ErrIdentifierOverflow, f("limit is %v", MaxIdentifiers))
	}
	if !id.Anon {
		if prev, ok := fr.names[id.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrRedeclared,
				f("'%v' already declared at %v", id.Name, prev.Pos))
		}
	}

	id.Level = s.Depth()
	id.Ordinal = fr.slots
	fr.slots++
	if id.Storage == Stack {
		fr.stack++
		id.Offset = -2 * fr.stack
	}

	p := &id
	if !id.Anon {
		fr.names[id.Name] = p
	}
	return p, nil
}

// Lookup finds name in the innermost frame that declares it.
func (s *ScopeStack) Lookup(name string) (*Identifier, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if id, ok := s.frames[i].names[name]; ok {
			return id, true
		}
	}
	return nil, false
}

// Shadows reports whether declaring name here would hide an identifier of
// an enclosing frame.
func (s *ScopeStack) Shadows(name string) (*Identifier, bool) {
	for i := len(s.frames) - 2; i >= 0; i-- {
		if id, ok := s.frames[i].names[name]; ok {
			return id, true
		}
	}
	return nil, false
}

// RoutineLevel is the level of the frame a return leaves: the innermost
// irq frame, or the outermost scope.
func (s *ScopeStack) RoutineLevel() int {
	for i := len(s.frames) - 1; i > 0; i-- {
		if s.frames[i].kind == FrameIrq {
			return i
		}
	}
	return 1
}

// FrameKindAt returns the kind of the frame at level.
func (s *ScopeStack) FrameKindAt(level int) FrameKind {
	return s.frames[level].kind
}

// String returns a deterministically ordered dump of the open frames.
func (s *ScopeStack) String() string {
	var sb strings.Builder
	for level, fr := range s.frames {
		fmt.Fprintf(&sb, "Level %d (%v, %d slots):\n", level, fr.kind, fr.slots)
		names := make([]string, 0, len(fr.names))
		for name := range fr.names {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			id := fr.names[name]
			fmt.Fprintf(&sb, "  %-20s  %v %d", name, id.Storage, id.Offset)
			if id.Const {
				sb.WriteString(" const")
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}
