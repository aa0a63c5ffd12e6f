package types

import (
	"fmt"
	"strings"
)

// Format selects the payload rendering
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "txt"
)

// ParseFormat validates a format name. An empty name selects JSON.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatText:
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: %q (allowed: json, txt)", ErrInvalidFormat, raw)
	}
}
