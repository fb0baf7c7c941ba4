package sizecache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0B"},
		{1, "1B"},
		{512, "512B"},
		{1023, "1023B"},
		{1024, "1KB"},
		{1536, "1.5KB"},
		{24 * 1024, "24KB"},
		{24*1024 + 100, "24.1KB"},
		{1024 * 1024, "1MB"},
		{1572864, "1.5MB"},
		{5 * 1024 * 1024 * 1024, "5GB"},
		{3 * 1024 * 1024 * 1024 * 1024, "3TB"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatSize(tt.bytes))
		})
	}
}
