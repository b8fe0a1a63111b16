//go:build darwin

package helpers

import "os/exec"

// GetTotalSystemMemoryMB returns the total physical memory in MB.
func GetTotalSystemMemoryMB() int {
	out, err := exec.Command("sysctl", "-n", "hw.memsize").Output()
	if err != nil {
		return 0
	}
	return parseByteCountMB(string(out))
}
