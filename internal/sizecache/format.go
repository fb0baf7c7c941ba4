package sizecache

import (
	"fmt"
	"math"
)

var sizeUnits = []string{"KB", "MB", "GB", "TB"}

// FormatSize renders a byte count as a binary-prefix human string, e.g.
// "24KB" or "1.5MB". Integer values are rendered without a decimal
// point, everything else with one decimal.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%dB", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < len(sizeUnits)-1; n /= unit {
		div *= unit
		exp++
	}

	value := math.Round(float64(bytes)/float64(div)*10) / 10
	if value == math.Trunc(value) {
		return fmt.Sprintf("%d%s", int64(value), sizeUnits[exp])
	}
	return fmt.Sprintf("%.1f%s", value, sizeUnits[exp])
}
