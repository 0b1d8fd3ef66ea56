package filter

import (
	"context"
	"testing"
)

// protocolGate is the general-path equivalent of ProtocolFilter: load the
// byte at offset 9, return 1 if it matches protocol, else 0.
func protocolGate(protocol byte) []byte {
	return buildProgram([]Instruction{
		{Opcode: 0x71, DstReg: 0, SrcReg: 1, Offset: 9},
		{Opcode: 0x55, DstReg: 0, Immediate: int32(protocol), Offset: 2},
		{Opcode: 0xb7, DstReg: 0, Immediate: 1},
		{Opcode: opExit},
		{Opcode: 0xb7, DstReg: 0, Immediate: 0},
		{Opcode: opExit},
	})
}

// portGate is the general-path equivalent of PortFilter: load the two
// bytes at offset 22-23, reassemble them big-endian via shift-and-or, and
// return 1 if they match port, else 0.
func portGate(port uint16) []byte {
	return buildProgram([]Instruction{
		{Opcode: 0x71, DstReg: 2, SrcReg: 1, Offset: 22}, // ldxb r2, [r1+22] (high byte)
		{Opcode: 0x71, DstReg: 3, SrcReg: 1, Offset: 23}, // ldxb r3, [r1+23] (low byte)
		{Opcode: 0x67, DstReg: 2, Immediate: 8}, // lsh64 r2, 8
		{Opcode: 0x4f, DstReg: 2, SrcReg: 3},    // or64 r2, r3
		{Opcode: 0x55, DstReg: 2, Immediate: int32(port), Offset: 2},
		{Opcode: 0xb7, DstReg: 0, Immediate: 1},
		{Opcode: opExit},
		{Opcode: 0xb7, DstReg: 0, Immediate: 0},
		{Opcode: opExit},
	})
}

func runGate(t *testing.T, bytecode, data []byte) bool {
	t.Helper()
	j := NewJIT()
	cp, err := j.Compile(bytecode)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	result, err := j.Execute(context.Background(), cp, data)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	return result != 0
}

// TestFastPathAgreesWithGeneralPath runs PortFilter and ProtocolFilter
// alongside their general-path bytecode equivalents on the same packets
// and requires identical verdicts, so a change to either path's semantics
// can't silently diverge from the other.
func TestFastPathAgreesWithGeneralPath(t *testing.T) {
	match := testPacket()
	mismatch := testPacket()
	mismatch[9] = 17   // UDP instead of TCP
	mismatch[23] = 0x51 // port 81 instead of 80

	cases := []struct {
		name string
		data []byte
	}{
		{"match", match},
		{"mismatch", mismatch},
	}

	for _, c := range cases {
		t.Run("protocol/"+c.name, func(t *testing.T) {
			want := ProtocolFilter(c.data, 6)
			got := runGate(t, protocolGate(6), c.data)
			if got != want {
				t.Fatalf("fast path=%v, general path=%v", want, got)
			}
		})
		t.Run("port/"+c.name, func(t *testing.T) {
			want := PortFilter(c.data, 80)
			got := runGate(t, portGate(80), c.data)
			if got != want {
				t.Fatalf("fast path=%v, general path=%v", want, got)
			}
		})
	}
}

func testPacket() []byte {
	data := make([]byte, 24)
	data[9] = 6 // TCP
	data[22] = 0x00
	data[23] = 0x50 // port 80
	return data
}

func TestProtocolFilter(t *testing.T) {
	data := testPacket()
	if !ProtocolFilter(data, 6) {
		t.Fatal("expected TCP protocol match")
	}
	if ProtocolFilter(data, 17) {
		t.Fatal("expected UDP protocol mismatch")
	}
}

func TestPortFilter(t *testing.T) {
	data := testPacket()
	if !PortFilter(data, 80) {
		t.Fatal("expected port 80 match")
	}
	if PortFilter(data, 443) {
		t.Fatal("expected port 443 mismatch")
	}
}

func TestSizeFilter(t *testing.T) {
	data := testPacket()
	if !SizeFilter(data, 10, 100) {
		t.Fatal("expected size within bounds")
	}
	if SizeFilter(data, 100, 200) {
		t.Fatal("expected size below min to fail")
	}
}

func TestFastPathShortPacketIsSafe(t *testing.T) {
	short := []byte{1, 2, 3}
	if PortFilter(short, 80) {
		t.Fatal("expected short packet to fail port filter")
	}
	if ProtocolFilter(short, 6) {
		t.Fatal("expected short packet to fail protocol filter")
	}
}
