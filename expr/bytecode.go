package expr

import (
	"fmt"

	"github.com/cozodb/cozo-go/value"
)

// Opcode is a bytecode instruction tag for the flat program Compile
// produces. The VM is a simple stack machine: PushConst/PushBinding grow
// the stack by one, Call pops NArgs and pushes one result.
type Opcode byte

const (
	OpPushConst Opcode = iota
	OpPushBinding
	OpCall
)

// Instr is one bytecode instruction.
type Instr struct {
	Op      Opcode
	Operand int    // ConstIdx for PushConst, row position for PushBinding
	OpName  string // operation name for Call
	NArgs   int    // argument count for Call
}

// Program is Compile's flat output: an instruction stream plus the
// constant pool it indexes into, and a predicted maximum stack depth so
// the VM can preallocate the stack slice once.
type Program struct {
	Instrs   []Instr
	Consts   []value.Value
	MaxStack int
}

// Compile flattens e into a Program executable against a row without
// per-call tree traversal or allocation beyond the already-preallocated
// stack (spec.md §4.3). Every Binding in e must already carry a resolved
// Pos (>= 0); that is reorder's (package logic) job, done once per rule
// body, not once per row.
func Compile(e Expr) (*Program, error) {
	p := &Program{}
	depth, err := compileInto(e, p)
	if err != nil {
		return nil, err
	}
	p.MaxStack = depth
	return p, nil
}

func compileInto(e Expr, p *Program) (int, error) {
	switch n := e.(type) {
	case Const:
		p.Consts = append(p.Consts, n.Val)
		p.Instrs = append(p.Instrs, Instr{Op: OpPushConst, Operand: len(p.Consts) - 1})
		return 1, nil
	case Binding:
		if n.Pos < 0 {
			return 0, fmt.Errorf("expr: Compile: binding %q has no resolved row position", n.Sym.Name)
		}
		p.Instrs = append(p.Instrs, Instr{Op: OpPushBinding, Operand: n.Pos})
		return 1, nil
	case Apply:
		maxDepth := 0
		for i, a := range n.Args {
			d, err := compileInto(a, p)
			if err != nil {
				return 0, err
			}
			here := i + d
			if here > maxDepth {
				maxDepth = here
			}
		}
		p.Instrs = append(p.Instrs, Instr{Op: OpCall, OpName: n.Op, NArgs: len(n.Args)})
		if len(n.Args) > maxDepth {
			maxDepth = len(n.Args)
		}
		return maxDepth, nil
	default:
		return 0, fmt.Errorf("expr: Compile: unreachable node %T", e)
	}
}

// Exec runs prog against row, where row[i] is the value bound to
// whatever variable Compile resolved to row position i.
func Exec(prog *Program, row []value.Value) (value.Value, error) {
	stack := make([]value.Value, 0, prog.MaxStack+1)
	for _, ins := range prog.Instrs {
		switch ins.Op {
		case OpPushConst:
			stack = append(stack, prog.Consts[ins.Operand])
		case OpPushBinding:
			if ins.Operand >= len(row) {
				return value.Value{}, fmt.Errorf("expr: Exec: row position %d out of range (row has %d columns)", ins.Operand, len(row))
			}
			stack = append(stack, row[ins.Operand])
		case OpCall:
			if len(stack) < ins.NArgs {
				return value.Value{}, fmt.Errorf("expr: Exec: stack underflow calling %q", ins.OpName)
			}
			args := stack[len(stack)-ins.NArgs:]
			op, ok := Lookup(ins.OpName)
			if !ok {
				return value.Value{}, fmt.Errorf("expr: ResolveError: unknown operation %q", ins.OpName)
			}
			if err := op.checkArity(len(args)); err != nil {
				return value.Value{}, err
			}
			result, err := op.Fn(args)
			if err != nil {
				return value.Value{}, err
			}
			stack = stack[:len(stack)-ins.NArgs]
			stack = append(stack, result)
		default:
			return value.Value{}, fmt.Errorf("expr: Exec: unknown opcode %d", ins.Op)
		}
	}
	if len(stack) != 1 {
		return value.Value{}, fmt.Errorf("expr: Exec: program left %d values on the stack, want 1", len(stack))
	}
	return stack[0], nil
}
