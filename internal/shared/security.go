package shared

// TrustLevel ranks the caller's isolation requirement, ordered Low < Medium
// < High. Low always gets maximum isolation regardless of what the caller
// asks for: the dynamic-language backend runs Low-trust code in its
// sandboxed sub-runtime (see dynamic.Runtime.useSandboxed). The dispatcher
// does not read the trust level.
type TrustLevel int

const (
	TrustLow TrustLevel = iota
	TrustMedium
	TrustHigh
)

func (t TrustLevel) String() string {
	switch t {
	case TrustLow:
		return "low"
	case TrustMedium:
		return "medium"
	case TrustHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Capability is a single permission grant. TrustLevel seeds the default
// capability set (NewPermissions). The dynamic-language backend keys its
// policy on Permissions.TrustLevel; the only capability any backend checks
// is CapEnvironmentVariables, which decides whether native-embed passes
// the host environment to its child process.
type Capability int

const (
	CapNetworkAccess Capability = iota
	CapFileSystemRead
	CapFileSystemWrite
	CapProcessSpawn
	CapSystemTime
	CapEnvironmentVariables
	CapSharedMemory
	CapCPUIntensive
	CapGPUAccess
)

// Permissions pairs a capability set with the trust level it was derived
// from. TrustLevel drives the dynamic-language backend's code validation,
// sandbox construction and sub-runtime choice.
type Permissions struct {
	TrustLevel   TrustLevel
	Capabilities map[Capability]struct{}
}

// NewPermissions builds the default capability set for a trust level,
// matching next-rc's runtimes/shared/src/security.rs::Permissions::new
// exactly: Low grants nothing, Medium grants system-time + fs-read, High
// grants network + fs-read + fs-write + system-time + env-vars +
// shared-memory.
func NewPermissions(level TrustLevel) Permissions {
	caps := map[Capability]struct{}{}
	switch level {
	case TrustLow:
		// no capabilities
	case TrustMedium:
		caps[CapSystemTime] = struct{}{}
		caps[CapFileSystemRead] = struct{}{}
	case TrustHigh:
		caps[CapNetworkAccess] = struct{}{}
		caps[CapFileSystemRead] = struct{}{}
		caps[CapFileSystemWrite] = struct{}{}
		caps[CapSystemTime] = struct{}{}
		caps[CapEnvironmentVariables] = struct{}{}
		caps[CapSharedMemory] = struct{}{}
	}
	return Permissions{TrustLevel: level, Capabilities: caps}
}

// Has reports whether the capability set grants cap.
func (p Permissions) Has(cap Capability) bool {
	_, ok := p.Capabilities[cap]
	return ok
}
