package filter

import "time"

// nowNano backs helper 1 (get current time). Kept as its own function so
// tests can see exactly what the helper contract is without reaching into
// the registry map.
func nowNano() int64 {
	return time.Now().UnixNano()
}
