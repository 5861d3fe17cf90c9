package valueobjects

import (
	"fmt"
	"strings"
)

// MaxAssetCodeLength bounds the human-readable asset code.
const MaxAssetCodeLength = 50

// NormalizeAssetCode uppercases and validates an asset code.
func NormalizeAssetCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", fmt.Errorf("asset code must not be empty")
	}
	if len(code) > MaxAssetCodeLength {
		return "", fmt.Errorf("asset code exceeds %d characters", MaxAssetCodeLength)
	}
	for _, c := range code {
		if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') && c != '_' {
			return "", fmt.Errorf("asset code contains invalid character %q", c)
		}
	}
	return code, nil
}
