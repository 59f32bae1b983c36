// Package compiler lowers a parsed program (pkg/ast) to a bytecode
// container (pkg/bytecode) per SPEC_FULL.md §4.3.3: a two-pass design
// where analyzeProgram (scope.go) first determines, for every function
// in the tree, which of its locals descendant functions capture, and
// codegen (this file) then emits instructions against that precomputed
// answer — emitting a local reference as a plain stack slot or a
// VarCell-backed capture slot never requires revisiting code already
// emitted for an earlier statement in the same function.
package compiler

import (
	"fmt"

	"microjs/pkg/ast"
	"microjs/pkg/bytecode"
)

// Compiler holds no state between calls; it exists so the package's
// API reads like the rest of microjs's front end (pkg/lexer.New,
// pkg/parser.New).
type Compiler struct{}

// New returns a Compiler.
func New() *Compiler { return &Compiler{} }

// Compile lowers an entire program to its root bytecode.Container.
func (c *Compiler) Compile(program *ast.Program) (*bytecode.Container, error) {
	top, an := analyzeProgram(program.Statements)
	fs := &funcState{
		e:     newEmitter(),
		scope: top,
		an:    an,
	}
	if err := fs.compileProgramBody(program.Statements); err != nil {
		return nil, err
	}
	return fs.container(), nil
}

// container builds fs's finished Container, stamping in the frame-shape
// fields (§4.3.3) the emitter itself has no way to know: how many plain
// locals and own-cells this function's frame needs.
func (fs *funcState) container() *bytecode.Container {
	c := fs.e.container()
	c.LocalCount = uint8(fs.totalLocalCount())
	c.OwnCellCount = uint8(fs.scope.ownCellCount())
	return c
}

// funcState is the per-function codegen context: its emitter, its
// precomputed scopeNode, the shared analysis map (to look up nested
// function scopes), a link to the enclosing function's funcState (nil
// at top level), the control-flow (loop/labeled-statement) stack for
// break/continue, and a counter for anonymous temporary locals (used by
// switch statements to hold the discriminant without leaving it on the
// value stack across fallthrough bodies).
type funcState struct {
	e      *emitter
	scope  *scopeNode
	an     *analysis
	parent *funcState

	frames      []*ctrlFrame
	extraLocals int
}

// ctrlFrame is one entry of the break/continue target stack.
type ctrlFrame struct {
	label    string
	isLoop   bool
	isSwitch bool

	breakPh []int

	// Continue target for loops whose "next iteration" point is known
	// before the body is compiled (while/for-in/for-of): a fixed
	// backward-jump target. For do-while and C-style for loops, the
	// condition or update clause comes after the body, so
	// continueTargetKnown is false while the body compiles and continuePh
	// collects forward placeholders patched once that position is known.
	continueTargetKnown bool
	continueTarget      int
	continuePh          []int
}

func (fs *funcState) compileProgramBody(stmts []ast.Statement) error {
	for i, stmt := range stmts {
		last := i == len(stmts)-1
		if last {
			if es, ok := stmt.(*ast.ExpressionStatement); ok {
				if err := fs.compileExpr(es.Expression); err != nil {
					return err
				}
				fs.e.op(bytecode.OpReturn)
				return nil
			}
		}
		if err := fs.compileStatement(stmt, ""); err != nil {
			return err
		}
	}
	fs.e.op(bytecode.OpReturnUndef)
	return nil
}

func (fs *funcState) allocTemp() int {
	idx := fs.scope.plainLocalCount() + fs.extraLocals
	fs.extraLocals++
	return idx
}

func (fs *funcState) totalLocalCount() int {
	return fs.scope.plainLocalCount() + fs.extraLocals
}

// ---- control-flow frame helpers ----

func (fs *funcState) pushLoop(label string) *ctrlFrame {
	f := &ctrlFrame{label: label, isLoop: true}
	fs.frames = append(fs.frames, f)
	return f
}

func (fs *funcState) pushLabel(label string) *ctrlFrame {
	f := &ctrlFrame{label: label, isLoop: false}
	fs.frames = append(fs.frames, f)
	return f
}

func (fs *funcState) popFrame() {
	fs.frames = fs.frames[:len(fs.frames)-1]
}

func (fs *funcState) findBreakFrame(label string) *ctrlFrame {
	for i := len(fs.frames) - 1; i >= 0; i-- {
		f := fs.frames[i]
		if label == "" {
			if f.isLoop || f.isSwitch {
				return f
			}
			continue
		}
		if f.label == label {
			return f
		}
	}
	return nil
}

func (fs *funcState) findContinueFrame(label string) *ctrlFrame {
	for i := len(fs.frames) - 1; i >= 0; i-- {
		f := fs.frames[i]
		if !f.isLoop {
			continue
		}
		if label == "" || f.label == label {
			return f
		}
	}
	return nil
}

func (f *ctrlFrame) emitContinue(e *emitter) {
	if f.continueTargetKnown {
		e.jumpBack(bytecode.OpGoto, f.continueTarget)
		return
	}
	ph := e.jumpPlaceholder(bytecode.OpGoto)
	f.continuePh = append(f.continuePh, ph)
}

func (f *ctrlFrame) emitBreak(e *emitter) {
	ph := e.jumpPlaceholder(bytecode.OpGoto)
	f.breakPh = append(f.breakPh, ph)
}

func (f *ctrlFrame) patchBreaks(e *emitter) {
	for _, ph := range f.breakPh {
		e.patchHere(ph)
	}
}

// ---- statements ----

func (fs *funcState) compileStatement(stmt ast.Statement, label string) error {
	switch n := stmt.(type) {
	case *ast.ExpressionStatement:
		if err := fs.compileExpr(n.Expression); err != nil {
			return err
		}
		fs.e.op(bytecode.OpDrop)
		return nil

	case *ast.VarStatement:
		for _, d := range n.Declarators {
			if d.Init == nil {
				continue
			}
			if err := fs.compileExpr(d.Init); err != nil {
				return err
			}
			fs.storeName(d.Name)
		}
		return nil

	case *ast.FunctionDeclaration:
		// The binding itself was hoisted by analysis; here we just
		// materialize the closure and store it, exactly like a var
		// initializer, at the point the declaration lexically appears
		// (function declarations are also accessible before this point
		// per hoisting, but microjs does not special-case pre-assignment
		// reads — a documented simplification, see DESIGN.md).
		if err := fs.compileFunctionLiteral(n, n.Params, n.Body.Statements); err != nil {
			return err
		}
		fs.storeName(n.Name)
		return nil

	case *ast.BlockStatement:
		for _, st := range n.Statements {
			if err := fs.compileStatement(st, ""); err != nil {
				return err
			}
		}
		return nil

	case *ast.IfStatement:
		if err := fs.compileExpr(n.Condition); err != nil {
			return err
		}
		falsePh := fs.e.jumpPlaceholder(bytecode.OpIfFalse)
		if err := fs.compileStatement(n.Consequence, ""); err != nil {
			return err
		}
		if n.Alternative != nil {
			endPh := fs.e.jumpPlaceholder(bytecode.OpGoto)
			fs.e.patchHere(falsePh)
			if err := fs.compileStatement(n.Alternative, ""); err != nil {
				return err
			}
			fs.e.patchHere(endPh)
		} else {
			fs.e.patchHere(falsePh)
		}
		return nil

	case *ast.WhileStatement:
		condPos := fs.e.pos()
		if err := fs.compileExpr(n.Condition); err != nil {
			return err
		}
		falsePh := fs.e.jumpPlaceholder(bytecode.OpIfFalse)
		frame := fs.pushLoop(label)
		frame.continueTargetKnown = true
		frame.continueTarget = condPos
		if err := fs.compileStatement(n.Body, ""); err != nil {
			return err
		}
		fs.e.jumpBack(bytecode.OpGoto, condPos)
		fs.e.patchHere(falsePh)
		frame.patchBreaks(fs.e)
		fs.popFrame()
		return nil

	case *ast.DoWhileStatement:
		bodyPos := fs.e.pos()
		frame := fs.pushLoop(label)
		if err := fs.compileStatement(n.Body, ""); err != nil {
			return err
		}
		condPos := fs.e.pos()
		frame.continueTargetKnown = true
		frame.continueTarget = condPos
		if err := fs.compileExpr(n.Condition); err != nil {
			return err
		}
		truePh := fs.e.jumpPlaceholder(bytecode.OpIfTrue)
		fs.e.patchTo(truePh, bodyPos)
		for _, ph := range frame.continuePh {
			fs.e.patchTo(ph, condPos)
		}
		frame.patchBreaks(fs.e)
		fs.popFrame()
		return nil

	case *ast.ForStatement:
		switch init := n.Init.(type) {
		case *ast.VarStatement:
			if err := fs.compileStatement(init, ""); err != nil {
				return err
			}
		case ast.Expression:
			if err := fs.compileExpr(init); err != nil {
				return err
			}
			fs.e.op(bytecode.OpDrop)
		}
		condPos := fs.e.pos()
		var falsePh int
		hasFalsePh := false
		if n.Condition != nil {
			if err := fs.compileExpr(n.Condition); err != nil {
				return err
			}
			falsePh = fs.e.jumpPlaceholder(bytecode.OpIfFalse)
			hasFalsePh = true
		}
		frame := fs.pushLoop(label)
		if err := fs.compileStatement(n.Body, ""); err != nil {
			return err
		}
		updatePos := fs.e.pos()
		if n.Update != nil {
			if err := fs.compileExpr(n.Update); err != nil {
				return err
			}
			fs.e.op(bytecode.OpDrop)
		}
		for _, ph := range frame.continuePh {
			fs.e.patchTo(ph, updatePos)
		}
		fs.e.jumpBack(bytecode.OpGoto, condPos)
		if hasFalsePh {
			fs.e.patchHere(falsePh)
		}
		frame.patchBreaks(fs.e)
		fs.popFrame()
		return nil

	case *ast.ForInStatement:
		// ForInStart/ForInNext are compiled per §9's documented policy
		// (emitted for completeness; the VM's dispatch loop treats them
		// as Reserved and throws "not implemented" if ever executed).
		if err := fs.compileExpr(n.Object); err != nil {
			return err
		}
		fs.e.op(bytecode.OpForInStart)
		loopPos := fs.e.pos()
		nextPh := fs.e.jumpPlaceholder(bytecode.OpForInNext)
		fs.storeName(n.LHSName)
		frame := fs.pushLoop(label)
		frame.continueTargetKnown = true
		frame.continueTarget = loopPos
		if err := fs.compileStatement(n.Body, ""); err != nil {
			return err
		}
		fs.e.jumpBack(bytecode.OpGoto, loopPos)
		fs.e.patchHere(nextPh)
		frame.patchBreaks(fs.e)
		fs.popFrame()
		fs.e.op(bytecode.OpDrop) // iterator state
		return nil

	case *ast.ForOfStatement:
		if err := fs.compileExpr(n.Iterable); err != nil {
			return err
		}
		fs.e.op(bytecode.OpForOfStart)
		loopPos := fs.e.pos()
		nextPh := fs.e.jumpPlaceholder(bytecode.OpForOfNext)
		fs.storeName(n.LHSName)
		frame := fs.pushLoop(label)
		frame.continueTargetKnown = true
		frame.continueTarget = loopPos
		if err := fs.compileStatement(n.Body, ""); err != nil {
			return err
		}
		fs.e.jumpBack(bytecode.OpGoto, loopPos)
		fs.e.patchHere(nextPh)
		frame.patchBreaks(fs.e)
		fs.popFrame()
		fs.e.op(bytecode.OpDrop)
		return nil

	case *ast.ReturnStatement:
		if n.Value != nil {
			if err := fs.compileExpr(n.Value); err != nil {
				return err
			}
			fs.e.op(bytecode.OpReturn)
		} else {
			fs.e.op(bytecode.OpReturnUndef)
		}
		return nil

	case *ast.BreakStatement:
		f := fs.findBreakFrame(n.Label)
		if f == nil {
			return fmt.Errorf("compiler: break outside loop/switch")
		}
		f.emitBreak(fs.e)
		return nil

	case *ast.ContinueStatement:
		f := fs.findContinueFrame(n.Label)
		if f == nil {
			return fmt.Errorf("compiler: continue outside loop")
		}
		f.emitContinue(fs.e)
		return nil

	case *ast.LabeledStatement:
		switch n.Body.(type) {
		case *ast.WhileStatement, *ast.DoWhileStatement, *ast.ForStatement,
			*ast.ForInStatement, *ast.ForOfStatement:
			return fs.compileStatement(n.Body, n.Label)
		default:
			f := fs.pushLabel(n.Label)
			if err := fs.compileStatement(n.Body, ""); err != nil {
				return err
			}
			f.patchBreaks(fs.e)
			fs.popFrame()
			return nil
		}

	case *ast.ThrowStatement:
		if err := fs.compileExpr(n.Value); err != nil {
			return err
		}
		fs.e.op(bytecode.OpThrow)
		return nil

	case *ast.TryStatement:
		return fs.compileTry(n)

	case *ast.SwitchStatement:
		return fs.compileSwitch(n, label)

	case *ast.EmptyStatement:
		return nil

	default:
		return fmt.Errorf("compiler: unsupported statement %T", stmt)
	}
}

func (fs *funcState) compileTry(n *ast.TryStatement) error {
	catchPh := fs.e.jumpPlaceholder(bytecode.OpPushCatchOffset)
	for _, st := range n.Block.Statements {
		if err := fs.compileStatement(st, ""); err != nil {
			return err
		}
	}
	fs.e.op(bytecode.OpClearCatchOffset)
	afterPh := fs.e.jumpPlaceholder(bytecode.OpGoto)
	fs.e.patchHere(catchPh)
	if n.Catch != nil {
		fs.e.op(bytecode.OpCatch)
		if n.Catch.Param != "" {
			fs.storeName(n.Catch.Param)
		} else {
			fs.e.op(bytecode.OpDrop)
		}
		for _, st := range n.Catch.Body.Statements {
			if err := fs.compileStatement(st, ""); err != nil {
				return err
			}
		}
	} else {
		// No catch clause: the caught value is simply discarded here;
		// Finally below still runs, then the exception is re-raised.
		fs.e.op(bytecode.OpCatch)
		fs.e.op(bytecode.OpDrop)
		if n.Finally != nil {
			for _, st := range n.Finally.Statements {
				if err := fs.compileStatement(st, ""); err != nil {
					return err
				}
			}
		}
		fs.e.op(bytecode.OpRethrow)
		fs.e.patchHere(afterPh)
		if n.Finally != nil {
			for _, st := range n.Finally.Statements {
				if err := fs.compileStatement(st, ""); err != nil {
					return err
				}
			}
		}
		return nil
	}
	fs.e.patchHere(afterPh)
	if n.Finally != nil {
		for _, st := range n.Finally.Statements {
			if err := fs.compileStatement(st, ""); err != nil {
				return err
			}
		}
	}
	return nil
}

func (fs *funcState) compileSwitch(n *ast.SwitchStatement, label string) error {
	if err := fs.compileExpr(n.Discriminant); err != nil {
		return err
	}
	tmp := fs.allocTemp()
	fs.e.opU8(bytecode.OpPutLoc, tmp)

	var matchPh []int
	for _, c := range n.Cases {
		if c.Test == nil {
			continue
		}
		fs.e.opU8(bytecode.OpGetLoc, tmp)
		if err := fs.compileExpr(c.Test); err != nil {
			return err
		}
		fs.e.op(bytecode.OpStrictEq)
		ph := fs.e.jumpPlaceholder(bytecode.OpIfTrue)
		matchPh = append(matchPh, ph)
	}
	noMatchPh := fs.e.jumpPlaceholder(bytecode.OpGoto)

	frame := fs.pushLabel(label)
	frame.isSwitch = true
	matchIdx := 0
	for _, c := range n.Cases {
		if c.Test == nil {
			fs.e.patchHere(noMatchPh)
			noMatchPh = -1
		} else {
			fs.e.patchHere(matchPh[matchIdx])
			matchIdx++
		}
		for _, st := range c.Statements {
			if err := fs.compileStatement(st, ""); err != nil {
				return err
			}
		}
	}
	if noMatchPh != -1 {
		fs.e.patchHere(noMatchPh)
	}
	frame.patchBreaks(fs.e)
	fs.popFrame()
	return nil
}

// ---- name resolution shared by reads, writes, and storeName ----

// storeName compiles a store-and-pop of the value already on top of the
// stack into name, resolving it against the current function's scope:
// an own-cell or forwarded capture (PutVarRef), a parameter (PutArg), a
// plain local (PutLoc), or — if name is not declared anywhere in the
// scope chain — the global object (PutGlobal).
func (fs *funcState) storeName(name string) {
	s := fs.scope
	if s.ownCell[name] {
		idx, _ := s.ownCellIndex(name)
		fs.e.opU8(bytecode.OpPutVarRef, idx)
		return
	}
	if s.capture[name] {
		idx, _ := s.captureIndex(name)
		fs.e.opU8(bytecode.OpPutVarRef, idx)
		return
	}
	if s.isParam(name) {
		if idx, ok := s.paramIndex(name); ok {
			fs.e.opU8(bytecode.OpPutArg, idx)
			return
		}
	}
	if idx, ok := s.plainLocalIndex(name); ok {
		fs.e.opU8(bytecode.OpPutLoc, idx)
		return
	}
	fs.e.atomRef8or16(bytecode.OpPutGlobal8, bytecode.OpPutGlobal16, name)
}

// setName is storeName's non-popping counterpart, used for assignment
// expressions (whose value is itself used, e.g. `x = y = 1`).
func (fs *funcState) setName(name string) {
	s := fs.scope
	if s.ownCell[name] {
		idx, _ := s.ownCellIndex(name)
		fs.e.opU8(bytecode.OpSetVarRef, idx)
		return
	}
	if s.capture[name] {
		idx, _ := s.captureIndex(name)
		fs.e.opU8(bytecode.OpSetVarRef, idx)
		return
	}
	if s.isParam(name) {
		if idx, ok := s.paramIndex(name); ok {
			fs.e.opU8(bytecode.OpSetArg, idx)
			return
		}
	}
	if idx, ok := s.plainLocalIndex(name); ok {
		fs.e.opU8(bytecode.OpSetLoc, idx)
		return
	}
	fs.e.atomRef8or16(bytecode.OpSetGlobal8, bytecode.OpSetGlobal16, name)
}

// loadName pushes name's current value.
func (fs *funcState) loadName(name string) {
	s := fs.scope
	if s.ownCell[name] {
		idx, _ := s.ownCellIndex(name)
		fs.e.opU8(bytecode.OpGetVarRef, idx)
		return
	}
	if s.capture[name] {
		idx, _ := s.captureIndex(name)
		fs.e.opU8(bytecode.OpGetVarRef, idx)
		return
	}
	if s.isParam(name) {
		if idx, ok := s.paramIndex(name); ok {
			fs.e.opU8(bytecode.OpGetArg, idx)
			return
		}
	}
	if idx, ok := s.plainLocalIndex(name); ok {
		fs.e.opU8(bytecode.OpGetLoc, idx)
		return
	}
	fs.e.atomRef8or16(bytecode.OpGetGlobal8, bytecode.OpGetGlobal16, name)
}

// ---- expressions ----

func (fs *funcState) compileExpr(expr ast.Expression) error {
	switch n := expr.(type) {
	case *ast.Identifier:
		fs.loadName(n.Name)
		return nil

	case *ast.NumberLiteral:
		fs.e.pushNumber(n.Value)
		return nil

	case *ast.StringLiteral:
		fs.e.pushString(n.Value)
		return nil

	case *ast.BoolLiteral:
		if n.Value {
			fs.e.op(bytecode.OpPushTrue)
		} else {
			fs.e.op(bytecode.OpPushFalse)
		}
		return nil

	case *ast.NullLiteral:
		fs.e.op(bytecode.OpNull)
		return nil

	case *ast.UndefinedLiteral:
		fs.e.op(bytecode.OpUndefined)
		return nil

	case *ast.ThisExpression:
		fs.e.op(bytecode.OpPushThis)
		return nil

	case *ast.FunctionExpression:
		return fs.compileFunctionLiteral(n, n.Params, bodyOf(n))

	case *ast.UnaryExpression:
		if err := fs.compileExpr(n.Operand); err != nil {
			return err
		}
		switch n.Operator {
		case "-":
			fs.e.op(bytecode.OpNeg)
		case "+":
			fs.e.op(bytecode.OpPlus)
		case "!":
			fs.e.op(bytecode.OpLNot)
		case "~":
			fs.e.op(bytecode.OpNot)
		case "typeof":
			fs.e.op(bytecode.OpTypeOf)
		case "void":
			fs.e.op(bytecode.OpVoid)
		case "delete":
			fs.e.op(bytecode.OpDelete)
		default:
			return fmt.Errorf("compiler: unsupported unary operator %q", n.Operator)
		}
		return nil

	case *ast.UpdateExpression:
		return fs.compileUpdate(n)

	case *ast.BinaryExpression:
		if err := fs.compileExpr(n.Left); err != nil {
			return err
		}
		if err := fs.compileExpr(n.Right); err != nil {
			return err
		}
		return fs.emitBinaryOp(n.Operator)

	case *ast.LogicalExpression:
		return fs.compileLogical(n)

	case *ast.AssignmentExpression:
		return fs.compileAssignment(n)

	case *ast.ConditionalExpression:
		if err := fs.compileExpr(n.Condition); err != nil {
			return err
		}
		falsePh := fs.e.jumpPlaceholder(bytecode.OpIfFalse)
		if err := fs.compileExpr(n.Consequent); err != nil {
			return err
		}
		endPh := fs.e.jumpPlaceholder(bytecode.OpGoto)
		fs.e.patchHere(falsePh)
		if err := fs.compileExpr(n.Alternate); err != nil {
			return err
		}
		fs.e.patchHere(endPh)
		return nil

	case *ast.SequenceExpression:
		for i, e := range n.Expressions {
			if err := fs.compileExpr(e); err != nil {
				return err
			}
			if i != len(n.Expressions)-1 {
				fs.e.op(bytecode.OpDrop)
			}
		}
		return nil

	case *ast.CallExpression:
		return fs.compileCall(n)

	case *ast.MemberExpression:
		return fs.compileMemberGet(n)

	case *ast.ArrayLiteral:
		fs.e.op(bytecode.OpArray)
		for _, el := range n.Elements {
			if el.Expr == nil {
				fs.e.op(bytecode.OpUndefined)
			} else if err := fs.compileExpr(el.Expr); err != nil {
				return err
			}
			fs.e.op(bytecode.OpDefineArrayEl)
		}
		return nil

	case *ast.ObjectLiteral:
		fs.e.op(bytecode.OpObject)
		for _, p := range n.Properties {
			if p.Computed {
				// PutArrayEl consumes [obj, key, value] entirely (matching
				// compileMemberSet's assignment usage) rather than leaving
				// the object behind, so dup it first: the duplicate is what
				// gets consumed, leaving the original for the next property
				// and for the literal's own result.
				fs.e.op(bytecode.OpDup)
				if err := fs.compileExpr(p.KeyExpr); err != nil {
					return err
				}
				if err := fs.compileExpr(p.Value); err != nil {
					return err
				}
				fs.e.op(bytecode.OpPutArrayEl)
				continue
			}
			if err := fs.compileExpr(p.Value); err != nil {
				return err
			}
			switch p.Kind {
			case ast.PropertyGetter:
				fs.e.opU16(bytecode.OpDefineGetter, fs.e.atom(p.Key))
			case ast.PropertySetter:
				fs.e.opU16(bytecode.OpDefineSetter, fs.e.atom(p.Key))
			default:
				fs.e.atomRef8or16(bytecode.OpDefineField, bytecode.OpDefineField, p.Key)
			}
		}
		return nil

	default:
		return fmt.Errorf("compiler: unsupported expression %T", expr)
	}
}

func (fs *funcState) emitBinaryOp(op string) error {
	switch op {
	case "+":
		fs.e.op(bytecode.OpAdd)
	case "-":
		fs.e.op(bytecode.OpSub)
	case "*":
		fs.e.op(bytecode.OpMul)
	case "/":
		fs.e.op(bytecode.OpDiv)
	case "%":
		fs.e.op(bytecode.OpMod)
	case "**":
		fs.e.op(bytecode.OpPow)
	case "<":
		fs.e.op(bytecode.OpLt)
	case "<=":
		fs.e.op(bytecode.OpLte)
	case ">":
		fs.e.op(bytecode.OpGt)
	case ">=":
		fs.e.op(bytecode.OpGte)
	case "==":
		fs.e.op(bytecode.OpEq)
	case "!=":
		fs.e.op(bytecode.OpNeq)
	case "===":
		fs.e.op(bytecode.OpStrictEq)
	case "!==":
		fs.e.op(bytecode.OpStrictNeq)
	case "&":
		fs.e.op(bytecode.OpAnd)
	case "|":
		fs.e.op(bytecode.OpOr)
	case "^":
		fs.e.op(bytecode.OpXor)
	case "<<":
		fs.e.op(bytecode.OpShl)
	case ">>":
		fs.e.op(bytecode.OpSar)
	case ">>>":
		fs.e.op(bytecode.OpShr)
	case "instanceof":
		fs.e.op(bytecode.OpInstanceof)
	case "in":
		fs.e.op(bytecode.OpIn)
	default:
		return fmt.Errorf("compiler: unsupported binary operator %q", op)
	}
	return nil
}

func (fs *funcState) compileLogical(n *ast.LogicalExpression) error {
	if err := fs.compileExpr(n.Left); err != nil {
		return err
	}
	switch n.Operator {
	case "&&":
		fs.e.op(bytecode.OpDup)
		falsePh := fs.e.jumpPlaceholder(bytecode.OpIfFalse)
		fs.e.op(bytecode.OpDrop)
		if err := fs.compileExpr(n.Right); err != nil {
			return err
		}
		fs.e.patchHere(falsePh)
		return nil
	case "||":
		fs.e.op(bytecode.OpDup)
		truePh := fs.e.jumpPlaceholder(bytecode.OpIfTrue)
		fs.e.op(bytecode.OpDrop)
		if err := fs.compileExpr(n.Right); err != nil {
			return err
		}
		fs.e.patchHere(truePh)
		return nil
	case "??":
		fs.e.op(bytecode.OpDup)
		fs.e.op(bytecode.OpNullish)
		falsePh := fs.e.jumpPlaceholder(bytecode.OpIfFalse)
		fs.e.op(bytecode.OpDrop)
		if err := fs.compileExpr(n.Right); err != nil {
			return err
		}
		fs.e.patchHere(falsePh)
		return nil
	default:
		return fmt.Errorf("compiler: unsupported logical operator %q", n.Operator)
	}
}

func (fs *funcState) compileUpdate(n *ast.UpdateExpression) error {
	if name, ok := n.Operand.(*ast.Identifier); ok {
		fs.loadName(name.Name)
		if n.Prefix {
			if n.Operator == "++" {
				fs.e.op(bytecode.OpInc)
			} else {
				fs.e.op(bytecode.OpDec)
			}
			fs.setName(name.Name)
			return nil
		}
		if n.Operator == "++" {
			fs.e.op(bytecode.OpPostInc)
		} else {
			fs.e.op(bytecode.OpPostDec)
		}
		// Stack is [old, new]; store the top (new), leaving old as the
		// expression's result.
		fs.storeName(name.Name)
		return nil
	}
	member, ok := n.Operand.(*ast.MemberExpression)
	if !ok {
		return fmt.Errorf("compiler: invalid update target %T", n.Operand)
	}
	if err := fs.compileMemberGet(member); err != nil {
		return err
	}
	if n.Prefix {
		if n.Operator == "++" {
			fs.e.op(bytecode.OpInc)
		} else {
			fs.e.op(bytecode.OpDec)
		}
		return fs.compileMemberSetDup(member)
	}
	if n.Operator == "++" {
		fs.e.op(bytecode.OpPostInc)
	} else {
		fs.e.op(bytecode.OpPostDec)
	}
	// Stack is [old, new]; store (and consume) new, leaving old as the
	// expression's result.
	return fs.compileMemberSet(member)
}

func (fs *funcState) compileAssignment(n *ast.AssignmentExpression) error {
	if ident, ok := n.Target.(*ast.Identifier); ok {
		if n.Operator == "=" {
			if err := fs.compileExpr(n.Value); err != nil {
				return err
			}
			fs.setName(ident.Name)
			return nil
		}
		fs.loadName(ident.Name)
		if err := fs.compileExpr(n.Value); err != nil {
			return err
		}
		if err := fs.emitBinaryOp(compoundOp(n.Operator)); err != nil {
			return err
		}
		fs.setName(ident.Name)
		return nil
	}
	member, isMember := n.Target.(*ast.MemberExpression)
	if !isMember {
		return fmt.Errorf("compiler: invalid assignment target %T", n.Target)
	}
	if n.Operator == "=" {
		if err := fs.compileExpr(n.Value); err != nil {
			return err
		}
		return fs.compileMemberSet(member)
	}
	if err := fs.compileMemberGet(member); err != nil {
		return err
	}
	if err := fs.compileExpr(n.Value); err != nil {
		return err
	}
	if err := fs.emitBinaryOp(compoundOp(n.Operator)); err != nil {
		return err
	}
	// compileMemberGet already re-evaluated the object/key once to read
	// the current value; compileMemberSet re-evaluates them again to
	// store — a documented double-evaluation simplification for
	// compound assignment on member targets (see DESIGN.md): correct
	// for side-effect-free targets, but `f().x += 1` calls f() twice.
	return fs.compileMemberSet(member)
}

func compoundOp(op string) string {
	if len(op) > 1 && op[len(op)-1] == '=' {
		return op[:len(op)-1]
	}
	return op
}

func (fs *funcState) compileMemberGet(n *ast.MemberExpression) error {
	if err := fs.compileExpr(n.Object); err != nil {
		return err
	}
	if n.Computed {
		if err := fs.compileExpr(n.Property); err != nil {
			return err
		}
		fs.e.op(bytecode.OpGetArrayEl)
		return nil
	}
	ident, ok := n.Property.(*ast.Identifier)
	if !ok {
		return fmt.Errorf("compiler: non-identifier static member key %T", n.Property)
	}
	fs.e.atomRef8or16(bytecode.OpGetField8, bytecode.OpGetField8, ident.Name)
	return nil
}

// compileMemberSet stores the value already on top of the stack into
// the member expression's target.
func (fs *funcState) compileMemberSet(n *ast.MemberExpression) error {
	if n.Computed {
		if err := fs.compileExpr(n.Object); err != nil {
			return err
		}
		if err := fs.compileExpr(n.Property); err != nil {
			return err
		}
		// stack: [value, obj, key] -> [obj, key, value] for PutArrayEl.
		fs.e.op(bytecode.OpRot3l)
		fs.e.op(bytecode.OpPutArrayEl)
		return nil
	}
	if err := fs.compileExpr(n.Object); err != nil {
		return err
	}
	ident, ok := n.Property.(*ast.Identifier)
	if !ok {
		return fmt.Errorf("compiler: non-identifier static member key %T", n.Property)
	}
	// stack: [value, obj] -> [obj, value] for PutField8.
	fs.e.op(bytecode.OpSwap)
	fs.e.atomRef8or16(bytecode.OpPutField8, bytecode.OpPutField8, ident.Name)
	return nil
}

// compileMemberSetDup stores the value on top of the stack into the
// member target without consuming it (used by ++/-- so the stored
// value remains as the update expression's result).
func (fs *funcState) compileMemberSetDup(n *ast.MemberExpression) error {
	fs.e.op(bytecode.OpDup)
	return fs.compileMemberSet(n)
}

func (fs *funcState) compileCall(n *ast.CallExpression) error {
	if n.IsNew {
		if err := fs.compileExpr(n.Callee); err != nil {
			return err
		}
		for _, a := range n.Args {
			if err := fs.compileExpr(a); err != nil {
				return err
			}
		}
		fs.e.opU16(bytecode.OpCallConstructor, len(n.Args))
		return nil
	}
	if member, ok := n.Callee.(*ast.MemberExpression); ok {
		if err := fs.compileExpr(member.Object); err != nil {
			return err
		}
		fs.e.op(bytecode.OpDup)
		if member.Computed {
			if err := fs.compileExpr(member.Property); err != nil {
				return err
			}
			fs.e.op(bytecode.OpGetArrayEl)
		} else {
			ident, ok := member.Property.(*ast.Identifier)
			if !ok {
				return fmt.Errorf("compiler: non-identifier static member key %T", member.Property)
			}
			fs.e.atomRef8or16(bytecode.OpGetField8, bytecode.OpGetField8, ident.Name)
		}
		for _, a := range n.Args {
			if err := fs.compileExpr(a); err != nil {
				return err
			}
		}
		fs.e.opU16(bytecode.OpCallMethod, len(n.Args))
		return nil
	}
	if err := fs.compileExpr(n.Callee); err != nil {
		return err
	}
	for _, a := range n.Args {
		if err := fs.compileExpr(a); err != nil {
			return err
		}
	}
	fs.e.opU16(bytecode.OpCall, len(n.Args))
	return nil
}

// compileFunctionLiteral compiles a nested function (declaration or
// expression) body into its own Container using the scopeNode analysis
// already computed for node, registers it in the parent's function
// subtable along with its capture wiring, and emits OpFClosure to build
// the runtime closure value.
func (fs *funcState) compileFunctionLiteral(node ast.Node, params []string, body []ast.Statement) error {
	childScope, ok := fs.an.scopes[node]
	if !ok {
		return fmt.Errorf("compiler: internal error: no scope recorded for function literal")
	}
	child := &funcState{
		e:      newEmitter(),
		scope:  childScope,
		an:     fs.an,
		parent: fs,
	}
	if err := child.compileFunctionBody(body); err != nil {
		return err
	}

	captures := make([]captureSource, len(childScope.captureOrder))
	for i, name := range childScope.captureOrder {
		if fs.scope.ownCell[name] {
			idx, _ := fs.scope.ownCellIndex(name)
			captures[i] = captureSource{fromOwnCell: true, index: idx}
		} else {
			idx, _ := fs.scope.captureIndex(name)
			captures[i] = captureSource{fromOwnCell: false, index: idx}
		}
	}

	fnEntry := bytecode.Function{
		ParamCount: uint8(childScope.paramCount()),
		Code:       child.container(),
	}
	idx := fs.e.addFunction(fnEntry, captures)
	fs.e.opU16(bytecode.OpFClosure, idx)
	return nil
}

// compileFunctionBody compiles a non-top-level function's statement
// list, including the own-cell parameter seeding prologue (§4.3.3's
// closure-capture protocol): any parameter promoted to an own-cell is
// read once via GetArg and copied into its VarCell before the rest of
// the body runs, since every subsequent reference to that name compiles
// to the VarRef family rather than GetArg.
func (fs *funcState) compileFunctionBody(body []ast.Statement) error {
	for _, name := range fs.scope.declOrder {
		if fs.scope.isParam(name) && fs.scope.ownCell[name] {
			paramIdx, _ := fs.scope.paramIndex(name)
			fs.e.opU8(bytecode.OpGetArg, paramIdx)
			ownIdx, _ := fs.scope.ownCellIndex(name)
			fs.e.opU8(bytecode.OpPutVarRef, ownIdx)
		}
	}
	for _, stmt := range body {
		if err := fs.compileStatement(stmt, ""); err != nil {
			return err
		}
	}
	fs.e.op(bytecode.OpReturnUndef)
	return nil
}
