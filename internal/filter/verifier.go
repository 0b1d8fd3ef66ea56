package filter

import (
	"errors"
	"fmt"
)

// Rejection reasons a program fails verification for. Callers that need to
// distinguish why a program was rejected (rather than just that it was)
// should use errors.Is against these rather than matching error text.
var (
	ErrInvalidLength       = errors.New("invalid bytecode length")
	ErrProgramTooLarge     = errors.New("program too large")
	ErrInvalidRegister     = errors.New("invalid register number")
	ErrInvalidOpcode       = errors.New("invalid opcode")
	ErrMemoryAccessDenied  = errors.New("memory access denied")
	ErrInvalidBranchTarget = errors.New("invalid branch target")
	ErrInvalidHelper       = errors.New("invalid helper function")
)

// Verifier performs the static safety checks required before a program
// may be cached or executed: length and instruction-count
// bounds, per-instruction register/opcode validity, branch-target bounds
// and alignment, and helper-call id validity. It holds no mutable state and
// is safe to share across goroutines.
//
// Ported from next-rc's runtimes/ebpf/src/verifier.rs::Verifier.
type Verifier struct {
	maxInstructions int
	allowUnsafe     bool
}

// NewVerifier returns a Verifier with the defaults next-rc uses: 4096
// instructions, memory access disallowed.
func NewVerifier() *Verifier {
	return &Verifier{maxInstructions: 4096, allowUnsafe: false}
}

// NewVerifierWithConfig builds a Verifier with explicit limits.
func NewVerifierWithConfig(maxInstructions int, allowUnsafe bool) *Verifier {
	return &Verifier{maxInstructions: maxInstructions, allowUnsafe: allowUnsafe}
}

// Verify runs every static check against bytecode and returns the first
// violation found, or nil if the program is safe to JIT-compile and cache.
func (v *Verifier) Verify(bytecode []byte) error {
	if len(bytecode)%InstructionSize != 0 {
		return fmt.Errorf("%w: must be multiple of %d", ErrInvalidLength, InstructionSize)
	}

	count := len(bytecode) / InstructionSize
	if count > v.maxInstructions {
		return fmt.Errorf("%w: %d instructions (max %d)", ErrProgramTooLarge, count, v.maxInstructions)
	}

	branchTargets := make([]int, 0, count)
	for pc := 0; pc < len(bytecode); pc += InstructionSize {
		insn := DecodeInstruction(bytecode[pc : pc+InstructionSize])
		if err := v.verifyInstruction(insn, pc); err != nil {
			return err
		}
		if isBranch(insn) {
			target, err := v.branchTarget(pc, insn)
			if err != nil {
				return err
			}
			branchTargets = append(branchTargets, target)
		}
	}

	for _, target := range branchTargets {
		if target >= len(bytecode) || target%InstructionSize != 0 {
			return fmt.Errorf("%w: %d", ErrInvalidBranchTarget, target)
		}
	}

	if err := v.verifyHelperCalls(bytecode); err != nil {
		return err
	}

	return nil
}

func (v *Verifier) verifyInstruction(insn Instruction, pc int) error {
	if insn.DstReg > 10 || insn.SrcReg > 10 {
		return fmt.Errorf("%w: at pc=%d", ErrInvalidRegister, pc)
	}

	switch {
	case insn.Opcode == opExit:
		return nil
	case insn.Opcode == opCall:
		return nil // call's helper id is range-checked separately
	default:
		if _, ok := aluOpcodes[insn.Opcode]; ok {
			return nil
		}
		if _, ok := jumpOpcodes[insn.Opcode]; ok {
			return nil
		}
		if _, ok := memOpcodes[insn.Opcode]; ok {
			if !v.allowUnsafe {
				return fmt.Errorf("%w: at pc=%d", ErrMemoryAccessDenied, pc)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: 0x%02x at pc=%d", ErrInvalidOpcode, insn.Opcode, pc)
}

// branchTarget computes the jump target using the wire format's formula:
// target = pc + 8 + offset*8.
func (v *Verifier) branchTarget(pc int, insn Instruction) (int, error) {
	target := pc + InstructionSize + int(insn.Offset)*InstructionSize
	if target < 0 {
		return 0, fmt.Errorf("%w: negative target at pc=%d", ErrInvalidBranchTarget, pc)
	}
	return target, nil
}

func (v *Verifier) verifyHelperCalls(bytecode []byte) error {
	for pc := 0; pc < len(bytecode); pc += InstructionSize {
		insn := DecodeInstruction(bytecode[pc : pc+InstructionSize])
		if insn.Opcode != opCall {
			continue
		}
		if !isValidHelper(insn.Immediate) {
			return fmt.Errorf("%w: %d at pc=%d", ErrInvalidHelper, insn.Immediate, pc)
		}
	}
	return nil
}
