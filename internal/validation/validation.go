package validation

import (
	"fmt"

	"github.com/quickfit/tryon/internal/imagecodec"
)

const (
	// MaxClothingItems is the largest clothing set accepted per request.
	MaxClothingItems = 3
	// MinImageBytes is the smallest decoded payload treated as an image.
	MinImageBytes = 100
)

// ValidationError describes a request shape problem. Message is safe to
// return to clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ResolveClothing picks the clothing list for a request: the list when it
// has entries, otherwise the single item, otherwise nothing.
func ResolveClothing(single string, list []string) []string {
	if len(list) > 0 {
		return list
	}
	if single != "" {
		return []string{single}
	}
	return nil
}

// CheckCount rejects clothing sets outside [1, MaxClothingItems].
func CheckCount(n int) error {
	if n == 0 {
		return &ValidationError{Message: "no clothing provided"}
	}
	if n > MaxClothingItems {
		return &ValidationError{Message: "too many clothing items"}
	}
	return nil
}

// ValidateClothing decodes each base64 item and returns the blobs in input
// order. Item numbers in error messages are 1-based.
func ValidateClothing(items []string) ([][]byte, error) {
	if err := CheckCount(len(items)); err != nil {
		return nil, err
	}

	blobs := make([][]byte, 0, len(items))
	for i, item := range items {
		blob, err := imagecodec.FromBase64(item)
		if err != nil {
			return nil, &ValidationError{Message: fmt.Sprintf("item %d decode failed: %v", i+1, err)}
		}
		if err := CheckSize(i+1, blob); err != nil {
			return nil, err
		}
		blobs = append(blobs, blob)
	}
	return blobs, nil
}

// CheckSize rejects payloads too small to be an image.
func CheckSize(item int, blob []byte) error {
	if len(blob) < MinImageBytes {
		return &ValidationError{Message: fmt.Sprintf("item %d invalid: too small", item)}
	}
	return nil
}
