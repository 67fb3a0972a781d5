package facematch

import (
	"math"
	"testing"
)

func TestRelativeBox(t *testing.T) {
	tests := []struct {
		name     string
		bbox     []float64
		width    int
		height   int
		expected []float64
	}{
		{
			name:     "centered box",
			bbox:     []float64{160, 120, 480, 360},
			width:    640,
			height:   480,
			expected: []float64{0.25, 0.25, 0.5, 0.5},
		},
		{
			name:     "full frame",
			bbox:     []float64{0, 0, 640, 480},
			width:    640,
			height:   480,
			expected: []float64{0, 0, 1, 1},
		},
		{
			name:     "flipped corners",
			bbox:     []float64{480, 360, 160, 120},
			width:    640,
			height:   480,
			expected: []float64{0.25, 0.25, 0.5, 0.5},
		},
		{
			name:     "zero width returns input",
			bbox:     []float64{1, 2, 3, 4},
			width:    0,
			height:   480,
			expected: []float64{1, 2, 3, 4},
		},
		{
			name:     "short bbox returns input",
			bbox:     []float64{1, 2, 3},
			width:    640,
			height:   480,
			expected: []float64{1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RelativeBox(tt.bbox, tt.width, tt.height)
			if len(result) != len(tt.expected) {
				t.Fatalf("RelativeBox(%v) length = %d, want %d", tt.bbox, len(result), len(tt.expected))
			}
			for i := range result {
				if math.Abs(result[i]-tt.expected[i]) > 0.0001 {
					t.Errorf("RelativeBox(%v)[%d] = %v, want %v", tt.bbox, i, result[i], tt.expected[i])
				}
			}
		})
	}
}
