package env

import (
	"io"
	"sync"

	"github.com/kestrellang/kestrel/diag"
	"github.com/kestrellang/kestrel/graph"
	"github.com/kestrellang/kestrel/hook"
)

// Options configures an Environment. The core itself takes no user-facing
// configuration surface (the CLI is out of scope, §1); Options is
// populated by whatever out-of-scope driver embeds this module.
type Options struct {
	WorkingDir     string
	OutputDir      string
	MaxParallelism int
	DefaultDefinitionName string
}

// CompileTimeVariable is a comptime variable (§3): an opaque value plus
// the name of the compile-time function that destroys it at teardown.
type CompileTimeVariable struct {
	TypeExprText   string
	Data           interface{}
	DestructorName string
}

// Environment is EvaluatorEnvironment (§3). It owns the definition graph,
// the compile-time callable tables, compile-time variables, hook lists,
// named splice points, and the small amount of bookkeeping the top-level
// control loop needs (the was-code-evaluated flag and the build ID
// counter).
type Environment struct {
	Graph *graph.Graph

	mu                   sync.RWMutex
	Macros               map[string]*Callable
	Generators           map[string]*Callable
	CompileTimeFunctions map[string]*Callable

	CompileTimeVariables map[string]*CompileTimeVariable

	SplicePoints                 *hook.SplicePoints
	PostReferencesResolvedHooks  hook.List
	PreLinkHooks                 hook.List
	RequiredCompileTimeFunctions map[string]string // name -> reason

	// FileCRCs and HeaderModTimes are the intra-build caches referenced by
	// §3. The top-level Driver fills FileCRCs from the header-crc table of
	// Cache.cake and writes it back there; package cache itself does not
	// import env. Nothing in this module currently fills HeaderModTimes.
	FileCRCs       map[string]uint32
	HeaderModTimes map[string]int64

	// CommandCRCs caches the argv CRC used to skip an unchanged compile
	// or link substage (§4.G).
	CommandCRCs map[string]uint32

	// Libraries are the dynamic libraries opened during this build, closed
	// together at teardown (§5).
	Libraries []io.Closer

	WasCodeEvaluatedThisPhase bool

	buildIDCounter int

	Handler *diag.Handler
	Options Options
}

// New constructs an empty Environment.
func New(opts Options, handler *diag.Handler) *Environment {
	e := &Environment{
		Macros:                       make(map[string]*Callable),
		Generators:                   make(map[string]*Callable),
		CompileTimeFunctions:         make(map[string]*Callable),
		CompileTimeVariables:         make(map[string]*CompileTimeVariable),
		SplicePoints:                 hook.NewSplicePoints(),
		RequiredCompileTimeFunctions: make(map[string]string),
		FileCRCs:                     make(map[string]uint32),
		HeaderModTimes:               make(map[string]int64),
		CommandCRCs:                  make(map[string]uint32),
		Handler:                      handler,
		Options:                      opts,
	}
	e.Graph = graph.New(e.IsBuiltinName)
	return e
}

// IsBuiltinName reports whether name is already taken by a macro,
// generator, or compile-time function, used by graph.AddDefinition to
// reject a colliding user definition (§4.C).
func (e *Environment) IsBuiltinName(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if _, ok := e.Macros[name]; ok {
		return true
	}
	if _, ok := e.Generators[name]; ok {
		return true
	}
	if _, ok := e.CompileTimeFunctions[name]; ok {
		return true
	}
	return false
}

func (e *Environment) RegisterMacro(name string, c *Callable) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c.Name = name
	e.Macros[name] = c
}

func (e *Environment) RegisterGenerator(name string, c *Callable) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c.Name = name
	e.Generators[name] = c
}

// RegisterCompileTimeFunction installs fn, logging (not failing) on
// redefinition, matching the Load substage's "redefinition is a note, not
// an error" rule (§4.G).
func (e *Environment) RegisterCompileTimeFunction(name string, c *Callable) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.CompileTimeFunctions[name]; exists && e.Handler != nil {
		e.Handler.Note("redefining compile-time function %q", name)
	}
	c.Name = name
	e.CompileTimeFunctions[name] = c
}

func (e *Environment) LookupMacro(name string) (*Callable, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.Macros[name]
	return c, ok
}

func (e *Environment) LookupGenerator(name string) (*Callable, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.Generators[name]
	return c, ok
}

func (e *Environment) LookupCompileTimeFunction(name string) (*Callable, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.CompileTimeFunctions[name]
	return c, ok
}

// NextBuildID returns a fresh monotonically increasing build ID, used to
// name per-wave temporary artifacts.
func (e *Environment) NextBuildID() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.buildIDCounter++
	return e.buildIDCounter
}

// RequireCompileTimeFunction marks name as required by infrastructure
// (rather than by user code), recording reason for diagnostics (§4.F).
func (e *Environment) RequireCompileTimeFunction(name, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.RequiredCompileTimeFunctions[name] = reason
}

// Teardown closes every dynamic library opened during the build and
// invokes each compile-time variable's destructor, per the arena-like
// environment lifecycle of §3: built up over the run, torn down once.
func (e *Environment) Teardown() []error {
	var errs []error
	for name, v := range e.CompileTimeVariables {
		if v.DestructorName == "" {
			continue
		}
		dtor, ok := e.LookupCompileTimeFunction(v.DestructorName)
		if !ok {
			continue
		}
		if _, err := dtor.CompileTime(v.Data); err != nil {
			errs = append(errs, err)
		}
		_ = name
	}
	for _, lib := range e.Libraries {
		if err := lib.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
