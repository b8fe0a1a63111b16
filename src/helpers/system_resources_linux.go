//go:build linux

package helpers

import "os"

// GetTotalSystemMemoryMB returns the total physical memory in MB.
func GetTotalSystemMemoryMB() int {
	file, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer file.Close()
	return parseMemTotalMB(file)
}
