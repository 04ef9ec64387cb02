package eval

import (
	"fmt"
	"strings"

	"github.com/kestrellang/kestrel/ectx"
	"github.com/kestrellang/kestrel/env"
	"github.com/kestrellang/kestrel/graph"
	"github.com/kestrellang/kestrel/output"
	"github.com/kestrellang/kestrel/token"
)

// registerBuiltins installs the always-available generators: defun and
// defvar emit runtime definitions directly; defmacro and defgenerator emit
// the Go source for a compile-time plugin function body (§4.G, "comptime
// build pipeline"); tokenize-push/token-splice are the quoting helpers a
// macro/generator body uses to describe the token vector it builds at
// compile time; gensym mints collision-free names (SUPPLEMENTED FEATURES).
//
// These close over envr directly rather than going through the
// env.Evaluator argument each Callable is handed, since only the concrete
// *env.Environment exposes the definition graph and registration tables a
// built-in needs.
func registerBuiltins(envr *env.Environment) {
	reg := func(name string, fn func(*env.Environment, env.Evaluator, env.Invocation, *output.Tree) error) {
		envr.RegisterGenerator(name, &env.Callable{
			Kind: env.CallGenerator,
			Generator: func(e env.Evaluator, inv env.Invocation, out *output.Tree) error {
				return fn(envr, e, inv, out)
			},
		})
	}

	reg("defun", defunGenerator)
	reg("defvar", defvarGenerator)
	reg("defmacro", defmacroGenerator)
	reg("defgenerator", defgeneratorGenerator)
	reg("tokenize-push", tokenizePushGenerator)
	reg("token-splice", tokenSpliceGenerator)
	reg("gensym", gensymGenerator)
}

// defunGenerator implements `(defun name (params...) body...)`, a Function
// definition. Parameter and return types are deliberately unparsed beyond a
// placeholder `int` — a full C type-token grammar is out of scope for this
// core (see DESIGN.md); the point exercised here is definition creation,
// required-ness, and body re-entry into the evaluator, not a type checker.
func defunGenerator(envr *env.Environment, ev env.Evaluator, inv env.Invocation, out *output.Tree) error {
	tokens, openIndex, ctx := inv.Tokens, inv.Open, inv.Context

	nameIdx, err := token.GetArgument(tokens, openIndex, 1)
	if err != nil {
		return err
	}
	nameTok := tokens.At(nameIdx)
	if nameTok.Kind != token.Symbol {
		return &token.InvocationError{At: nameTok, Message: "defun name must be a symbol"}
	}

	paramsIdx, err := token.GetArgument(tokens, openIndex, 2)
	if err != nil {
		return err
	}
	if tokens.At(paramsIdx).Kind != token.OpenParen {
		return &token.InvocationError{At: tokens.At(paramsIdx), Message: "defun parameter list must be a list"}
	}
	paramsClose := token.FindCloseParen(tokens, paramsIdx)

	def := graph.NewDefinition(nameTok.Text, graph.Function, nameTok)
	if nameTok.Text == "main" {
		def.IsRequired = true
		def.EnvironmentRequired = true
	}
	def.CapturedContext = ctx.WithDefinition(nameTok.Text).WithScope(ectx.Body)
	if err := envr.Graph.AddDefinition(def); err != nil {
		return err
	}
	out.AppendSplice(def.Output)

	def.Output.AppendSource(output.Literal("void", 0), output.Literal(" ", output.SpaceAfter))
	def.Output.AppendSource(output.Literal(nameTok.Text, output.ConvertFunctionName))
	def.Output.AppendSource(output.Literal("(", output.OpenParenMod))
	first := true
	for i := paramsIdx + 1; i < paramsClose; i++ {
		p := tokens.At(i)
		if p.Kind != token.Symbol {
			continue
		}
		if !first {
			def.Output.AppendSource(output.Literal(",", output.ListSeparator|output.SpaceAfter))
		}
		def.Output.AppendSource(output.Literal("int", 0), output.Literal(" ", output.SpaceAfter), output.Literal(p.Text, output.ConvertArgumentName))
		def.ParamTypeTokens = append(def.ParamTypeTokens, p)
		first = false
	}
	def.Output.AppendSource(output.Literal(")", output.CloseParenMod))
	def.Output.AppendSource(output.Literal("{", output.OpenBlock|output.NewlineAfter))

	ev.EvaluateAll(tokens, paramsClose+1, def.CapturedContext, def.Output)

	def.Output.AppendSource(output.Literal("}", output.CloseBlock|output.NewlineAfter))
	return nil
}

// defvarGenerator implements `(defvar name value)`, a Variable definition.
func defvarGenerator(envr *env.Environment, ev env.Evaluator, inv env.Invocation, out *output.Tree) error {
	tokens, openIndex, ctx := inv.Tokens, inv.Open, inv.Context

	nameIdx, err := token.GetArgument(tokens, openIndex, 1)
	if err != nil {
		return err
	}
	nameTok := tokens.At(nameIdx)
	if nameTok.Kind != token.Symbol {
		return &token.InvocationError{At: nameTok, Message: "defvar name must be a symbol"}
	}
	valueIdx, err := token.GetArgument(tokens, openIndex, 2)
	if err != nil {
		return err
	}

	def := graph.NewDefinition(nameTok.Text, graph.Variable, nameTok)
	def.CapturedContext = ctx.WithDefinition(nameTok.Text)
	if err := envr.Graph.AddDefinition(def); err != nil {
		return err
	}
	out.AppendSplice(def.Output)

	def.Output.AppendSource(output.Literal("int", 0), output.Literal(" ", output.SpaceAfter))
	def.Output.AppendSource(output.Literal(nameTok.Text, output.ConvertGlobalName))
	def.Output.AppendSource(output.Literal("=", output.SpaceBefore|output.SpaceAfter))
	ev.Evaluate(tokens, valueIdx, ctx.WithScope(ectx.ExpressionsOnly), def.Output)
	def.Output.AppendSource(output.Literal(";", output.EndStatement|output.NewlineAfter))
	return nil
}

// defmacroGenerator implements `(defmacro name (params...) body...)`: a
// CompileTimeMacro definition whose Output is the Go source of the plugin
// function the build pipeline will compile and dynamically load (§4.G). The
// body is evaluated through the same dispatcher as ordinary code, so a
// macro body is almost entirely tokenize-push/token-splice invocations.
//
// defgenerator shares the exact same compiled shape: both produce a
// `func(env.Evaluator, env.Invocation) (*token.Vector, bool)` symbol, built
// to the same env.MacroFunc signature so package dynload has a single
// lookup shape regardless of kind. The build pipeline tells them apart by
// the owning Definition's Kind when wiring the loaded symbol into
// env.Macros vs. env.Generators — a CompileTimeGenerator's returned tokens
// are evaluated back into the invocation's own enclosing Output rather than
// at module scope, turning it into an inline expansion instead of a
// fresh top-level definition (documented in DESIGN.md).
func defmacroGenerator(envr *env.Environment, ev env.Evaluator, inv env.Invocation, out *output.Tree) error {
	return defCompileTimeCallable(envr, ev, inv, graph.CompileTimeMacro)
}

// defgeneratorGenerator implements `(defgenerator name (params...)
// body...)`, the CompileTimeGenerator counterpart of defmacro.
func defgeneratorGenerator(envr *env.Environment, ev env.Evaluator, inv env.Invocation, out *output.Tree) error {
	return defCompileTimeCallable(envr, ev, inv, graph.CompileTimeGenerator)
}

// defCompileTimeCallable deliberately never splices def.Output into the
// enclosing Output: that tree holds the generated Go plugin source (§4.G),
// a separate build artifact from the C/C++ the module-level splice
// assembles, not a fragment of it.
func defCompileTimeCallable(envr *env.Environment, ev env.Evaluator, inv env.Invocation, kind graph.Kind) error {
	tokens, openIndex, ctx := inv.Tokens, inv.Open, inv.Context

	nameIdx, err := token.GetArgument(tokens, openIndex, 1)
	if err != nil {
		return err
	}
	nameTok := tokens.At(nameIdx)
	if nameTok.Kind != token.Symbol {
		return &token.InvocationError{At: nameTok, Message: "name must be a symbol"}
	}
	paramsIdx, err := token.GetArgument(tokens, openIndex, 2)
	if err != nil {
		return err
	}
	if tokens.At(paramsIdx).Kind != token.OpenParen {
		return &token.InvocationError{At: tokens.At(paramsIdx), Message: "parameter list must be a list"}
	}
	paramsClose := token.FindCloseParen(tokens, paramsIdx)

	def := graph.NewDefinition(nameTok.Text, kind, nameTok)
	def.CapturedContext = ctx.WithDefinition(nameTok.Text).WithScope(ectx.Body)
	if err := envr.Graph.AddDefinition(def); err != nil {
		return err
	}

	goName := "Macro_" + GoIdent(nameTok.Text)
	if kind == graph.CompileTimeGenerator {
		goName = "Generator_" + GoIdent(nameTok.Text)
	}
	def.Output.AppendSource(output.Literal(
		fmt.Sprintf("func %s(e env.Evaluator, invocation env.Invocation) (*token.Vector, bool) {", goName),
		output.NewlineAfter))
	def.Output.AppendSource(output.Literal("vec := token.NewVector(nil)", output.NewlineAfter))

	ev.EvaluateAll(tokens, paramsClose+1, def.CapturedContext, def.Output)

	def.Output.AppendSource(output.Literal("return vec, true", output.NewlineAfter))
	def.Output.AppendSource(output.Literal("}", output.NewlineAfter))
	return nil
}

// tokenizePushGenerator implements `(tokenize-push target tokenForm...)`:
// it walks its argument tokens as a quoted template (never evaluating them
// as Lisp) and emits one Go statement per token that appends the
// equivalent token.Token constructor to the Go variable named by target,
// except for a nested `(token-splice expr)` form, which instead appends the
// runtime value of expr (SUPPLEMENTED FEATURES).
func tokenizePushGenerator(envr *env.Environment, ev env.Evaluator, inv env.Invocation, out *output.Tree) error {
	tokens, openIndex := inv.Tokens, inv.Open
	closeIdx := token.FindCloseParen(tokens, openIndex)

	targetIdx, err := token.GetArgument(tokens, openIndex, 1)
	if err != nil {
		return err
	}
	target := tokens.At(targetIdx)
	if target.Kind != token.Symbol {
		return &token.InvocationError{At: target, Message: "tokenize-push target must be a symbol"}
	}

	i := targetIdx + 1
	for i < closeIdx {
		i = emitTemplatedToken(tokens, i, target.Text, out)
	}
	return nil
}

// GoIdent maps a Lisp-style name (which may contain hyphens, not legal in a
// Go identifier) to the symbol name the generated plugin source exports.
func GoIdent(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

func emitTemplatedToken(tokens *token.Vector, i int, target string, out *output.Tree) int {
	t := tokens.At(i)
	if t.Kind == token.OpenParen {
		closeIdx := token.FindCloseParen(tokens, i)
		if head := tokens.At(i + 1); head.Kind == token.Symbol && head.Text == "token-splice" {
			var parts []string
			for j := i + 2; j < closeIdx; j++ {
				parts = append(parts, tokens.At(j).Text)
			}
			out.AppendSource(output.Literal(fmt.Sprintf("%s.Append(%s)", target, strings.Join(parts, " ")), output.NewlineAfter))
			return closeIdx + 1
		}
		out.AppendSource(output.Literal(target+".Append(token.Open(invocation.Head().Pos))", output.NewlineAfter))
		j := i + 1
		for j < closeIdx {
			j = emitTemplatedToken(tokens, j, target, out)
		}
		out.AppendSource(output.Literal(target+".Append(token.Close(invocation.Head().Pos))", output.NewlineAfter))
		return closeIdx + 1
	}

	switch t.Kind {
	case token.Symbol:
		out.AppendSource(output.Literal(fmt.Sprintf("%s.Append(token.Sym(%q, invocation.Head().Pos))", target, t.Text), output.NewlineAfter))
	case token.String:
		out.AppendSource(output.Literal(fmt.Sprintf("%s.Append(token.Str(%q, invocation.Head().Pos))", target, t.Text), output.NewlineAfter))
	}
	return i + 1
}

// tokenSpliceGenerator only ever legitimately appears nested inside a
// tokenize-push template, which inspects its own argument tokens directly
// rather than dispatching them — so reaching this generator means
// token-splice was used outside that context.
func tokenSpliceGenerator(envr *env.Environment, ev env.Evaluator, inv env.Invocation, out *output.Tree) error {
	return &token.InvocationError{At: inv.Head(), Message: "token-splice may only appear inside tokenize-push"}
}

// gensymGenerator implements `(gensym base)`, minting a name unique to the
// enclosing definition and emitting it as a literal identifier
// (SUPPLEMENTED FEATURES, "gensym-style unique naming").
func gensymGenerator(envr *env.Environment, ev env.Evaluator, inv env.Invocation, out *output.Tree) error {
	tokens, openIndex, ctx := inv.Tokens, inv.Open, inv.Context
	baseIdx, err := token.GetArgument(tokens, openIndex, 1)
	if err != nil {
		return err
	}
	baseTok := tokens.At(baseIdx)
	if baseTok.Kind != token.Symbol {
		return &token.InvocationError{At: baseTok, Message: "gensym base must be a symbol"}
	}
	owner := ownerDefinitionOf(envr.Graph, ctx)
	name := owner.Gensym(baseTok.Text)
	out.AppendSource(output.Literal(name, output.ConvertVariableName))
	return nil
}
