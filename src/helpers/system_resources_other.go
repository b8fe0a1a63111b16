//go:build !linux && !darwin && !windows

package helpers

// GetTotalSystemMemoryMB is unknown here; callers fall back to the default.
func GetTotalSystemMemoryMB() int {
	return 0
}
