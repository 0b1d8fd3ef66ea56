package filter

import (
	"errors"
	"testing"
)

func acceptProgram() []byte {
	return []byte{
		0xb7, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
		0x95, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
}

func TestVerifyValidProgram(t *testing.T) {
	v := NewVerifier()
	if err := v.Verify(acceptProgram()); err != nil {
		t.Fatalf("expected valid program, got %v", err)
	}
}

func TestVerifyInvalidLength(t *testing.T) {
	v := NewVerifier()
	err := v.Verify(make([]byte, 7))
	if !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
}

func TestVerifyInvalidOpcode(t *testing.T) {
	v := NewVerifier()
	bytecode := []byte{
		0xFF, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x95, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	err := v.Verify(bytecode)
	if !errors.Is(err, ErrInvalidOpcode) {
		t.Fatalf("expected ErrInvalidOpcode, got %v", err)
	}
}

func TestVerifyInstructionCountLimit(t *testing.T) {
	v := NewVerifierWithConfig(1, false)
	err := v.Verify(acceptProgram())
	if !errors.Is(err, ErrProgramTooLarge) {
		t.Fatalf("expected ErrProgramTooLarge, got %v", err)
	}
}

func TestVerifyMemoryAccessRejectedInSafeMode(t *testing.T) {
	v := NewVerifier()
	bytecode := []byte{
		0x61, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, // ldxw r0, [r1+0]
		0x95, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	err := v.Verify(bytecode)
	if !errors.Is(err, ErrMemoryAccessDenied) {
		t.Fatalf("expected ErrMemoryAccessDenied, got %v", err)
	}
}

func TestVerifyMemoryAccessAllowedUnsafe(t *testing.T) {
	v := NewVerifierWithConfig(4096, true)
	bytecode := []byte{
		0x61, 0x10, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		0x95, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	if err := v.Verify(bytecode); err != nil {
		t.Fatalf("expected memory access to be allowed, got %v", err)
	}
}

func TestVerifyInvalidBranchTarget(t *testing.T) {
	v := NewVerifier()
	// A jump with an offset that lands outside the program.
	bytecode := []byte{
		0x05, 0x00, 0xFF, 0x7F, 0x00, 0x00, 0x00, 0x00, // ja +32767
		0x95, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	err := v.Verify(bytecode)
	if !errors.Is(err, ErrInvalidBranchTarget) {
		t.Fatalf("expected ErrInvalidBranchTarget, got %v", err)
	}
}

func TestVerifyInvalidHelperID(t *testing.T) {
	v := NewVerifier()
	bytecode := []byte{
		0x85, 0x00, 0x00, 0x00, 0x63, 0x00, 0x00, 0x00, // call 99 (out of range)
		0x95, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	err := v.Verify(bytecode)
	if !errors.Is(err, ErrInvalidHelper) {
		t.Fatalf("expected ErrInvalidHelper, got %v", err)
	}
}

func TestVerifyInvalidRegister(t *testing.T) {
	v := NewVerifier()
	bytecode := []byte{
		0xb7, 0xFF, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, // dst/src regs both out of range
		0x95, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	}
	err := v.Verify(bytecode)
	if !errors.Is(err, ErrInvalidRegister) {
		t.Fatalf("expected ErrInvalidRegister, got %v", err)
	}
}
