package helpers

import (
	"bufio"
	"io"
	"level-observer/src/logger"
	"strconv"
	"strings"
)

const (
	minMemoryLimitMB  = 512
	memoryLimitFactor = 0.75
)

// GetRecommendedMemoryLimit returns the candle cache budget in MB: 75% of
// physical memory, at least 512MB when the machine has that much.
func GetRecommendedMemoryLimit(log *logger.Logger) int {
	totalMB := GetTotalSystemMemoryMB()
	if totalMB == 0 {
		log.Warning("Could not determine system memory. Defaulting to %dMB.", minMemoryLimitMB)
	}
	return RecommendedMemoryLimitMB(totalMB)
}

// RecommendedMemoryLimitMB applies the sizing policy to a known total.
func RecommendedMemoryLimitMB(totalMB int) int {
	if totalMB <= 0 {
		return minMemoryLimitMB
	}

	limit := int(float64(totalMB) * memoryLimitFactor)
	if limit < minMemoryLimitMB {
		if totalMB < minMemoryLimitMB {
			return totalMB
		}
		return minMemoryLimitMB
	}
	return limit
}

// -----------------------------------------------------------------------------

// parseMemTotalMB reads the MemTotal line of a /proc/meminfo listing.
func parseMemTotalMB(r io.Reader) int {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == "MemTotal:" {
			kb, err := strconv.Atoi(fields[1])
			if err == nil {
				return kb / 1024
			}
		}
	}
	return 0
}

// parseByteCountMB converts a raw byte count such as sysctl output to MB.
func parseByteCountMB(s string) int {
	bytes, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return int(bytes / 1024 / 1024)
}
