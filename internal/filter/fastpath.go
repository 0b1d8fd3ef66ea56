package filter

import "encoding/binary"

// FastPath implementations bypass the verifier and JIT cache entirely for
// the three filter shapes common enough to deserve a direct Go
// implementation. PortFilter and ProtocolFilter are checked against an
// equivalent general program in fastpath_test.go by running both paths on
// the same packets; SizeFilter is tested on its own.
//
// Ported from next-rc's runtimes/ebpf/src/jit.rs::OptimizedFilters.

// PortFilter checks the destination port at offset 22-23 (big-endian),
// the conventional TCP/UDP destination port offset for an Ethernet+IPv4
// frame. Returns false for anything shorter than 24 bytes rather than
// panicking.
func PortFilter(data []byte, port uint16) bool {
	if len(data) < 24 {
		return false
	}
	dstPort := binary.BigEndian.Uint16(data[22:24])
	return dstPort == port
}

// ProtocolFilter checks the IP protocol field at offset 9.
func ProtocolFilter(data []byte, protocol byte) bool {
	if len(data) < 10 {
		return false
	}
	return data[9] == protocol
}

// SizeFilter checks the packet length falls within [minSize, maxSize].
func SizeFilter(data []byte, minSize, maxSize int) bool {
	return len(data) >= minSize && len(data) <= maxSize
}
