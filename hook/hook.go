// Package hook implements the hook lists and named splice points of §4.I:
// ordered pre-link and post-references-resolved hooks, and named anchors
// that later code can re-evaluate into.
package hook

import (
	"sort"

	"github.com/kestrellang/kestrel/ectx"
	"github.com/kestrellang/kestrel/output"
	"github.com/kestrellang/kestrel/token"
)

// Func is a registered hook callback. It returns an error if the hook
// itself failed; per §9, when a hook errors the source stops running
// further hooks in the same pass, and this module preserves that
// behavior.
type Func func() error

type entry struct {
	fn            Func
	ptrKey        uintptr
	userPriority  int
	envPriority   int
}

// List is a priority-ordered hook list: sorted by (userPriority desc,
// environmentPriority desc), where environmentPriority is assigned in
// encounter order and only breaks ties (§4.I).
type List struct {
	entries  []entry
	envSeq   int
}

// Add registers fn with the given user priority if it has not already been
// added (comparing by function identity via reflect, since Go functions
// are not otherwise comparable) — re-adding the same function pointer is a
// no-op (§4.I).
func (l *List) Add(fn Func, key uintptr, userPriority int) {
	for _, e := range l.entries {
		if e.ptrKey == key {
			return
		}
	}
	l.entries = append(l.entries, entry{fn: fn, ptrKey: key, userPriority: userPriority, envPriority: l.envSeq})
	l.envSeq++
	sort.SliceStable(l.entries, func(i, j int) bool {
		if l.entries[i].userPriority != l.entries[j].userPriority {
			return l.entries[i].userPriority > l.entries[j].userPriority
		}
		return l.entries[i].envPriority > l.entries[j].envPriority
	})
}

// RunUntilError runs every hook in priority order, stopping at (and
// returning) the first error.
func (l *List) RunUntilError() error {
	for _, e := range l.entries {
		if err := e.fn(); err != nil {
			return err
		}
	}
	return nil
}

func (l *List) Len() int { return len(l.entries) }

// SplicePoint is a named anchor: an Output, the context it should be
// re-evaluated with, and the token to blame if re-evaluation fails.
type SplicePoint struct {
	Name    string
	Out     *output.Tree
	Context ectx.Context
	Blame   token.Token
}

// SplicePoints is the named splice point registry.
type SplicePoints struct {
	points map[string]*SplicePoint
}

func NewSplicePoints() *SplicePoints {
	return &SplicePoints{points: make(map[string]*SplicePoint)}
}

// Register adds a named splice point. Re-registering the same name
// replaces the captured context but reuses the same Output (identity must
// be preserved so existing splices into it remain valid).
func (s *SplicePoints) Register(name string, out *output.Tree, ctx ectx.Context, blame token.Token) {
	if existing, ok := s.points[name]; ok {
		existing.Context = ctx
		existing.Blame = blame
		return
	}
	s.points[name] = &SplicePoint{Name: name, Out: out, Context: ctx, Blame: blame}
}

func (s *SplicePoints) Get(name string) (*SplicePoint, bool) {
	p, ok := s.points[name]
	return p, ok
}

// SignaturesMatch compares two parameter-type token lists textually, per
// §4.I: a leading `'` on a name token is a quoting marker and is ignored
// for matching purposes (it lets the expected signature use a symbolic
// placeholder instead of naming a concrete type).
func SignaturesMatch(expected, got []token.Token) bool {
	if len(expected) != len(got) {
		return false
	}
	for i := range expected {
		a := stripQuote(expected[i].Text)
		b := stripQuote(got[i].Text)
		if a != b {
			return false
		}
	}
	return true
}

func stripQuote(s string) string {
	if len(s) > 0 && s[0] == '\'' {
		return s[1:]
	}
	return s
}
