// Package constants provides shared constants used across the codebase.
package constants

// Event channel constants
const (
	// EventChannelBuffer is the buffer size for event subscriber channels
	EventChannelBuffer = 100
)

// Upload constants
const (
	// MaxFrameUploadSize is the maximum camera frame upload size in bytes (10MB)
	MaxFrameUploadSize = 10 << 20

	// MaxProductImageSize is the maximum product image upload size in bytes (20MB)
	MaxProductImageSize = 20 << 20
)

// Image constants
const (
	// DescribeImageSize is the maximum dimension of product images sent to AI providers
	DescribeImageSize = 800
)
