// Package utils provides small helpers shared by the ppcalign commands.
package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apex/log"
)

// ConvertStrToInt converts an input string to uint64, accepting both
// hex (with or without the 0x prefix) and decimal.
func ConvertStrToInt(intStr string) (uint64, error) {
	intStr = strings.ToLower(intStr)

	if strings.ContainsAny(intStr, "xabcdef") {
		intStr = strings.Replace(intStr, "0x", "", -1)
		intStr = strings.Replace(intStr, "x", "", -1)
		if out, err := strconv.ParseUint(intStr, 16, 64); err == nil {
			return out, err
		}
		log.Warn("assuming given integer is in decimal")
	}
	return strconv.ParseUint(intStr, 10, 64)
}

// ParseAddressRange parses a string like "8076a748-8076bd44" into its
// two hex addresses.
func ParseAddressRange(s string) (uint64, uint64, error) {
	if strings.Count(s, "-") != 1 {
		return 0, 0, fmt.Errorf("address range %q has invalid format", s)
	}
	parts := strings.SplitN(s, "-", 2)
	start, err := strconv.ParseUint(parts[0], 16, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("address range %q has invalid format", s)
	}
	end, err := strconv.ParseUint(parts[1], 16, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("address range %q has invalid format", s)
	}
	return start, end, nil
}
