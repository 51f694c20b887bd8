package validation

import (
	"fmt"
	"regexp"
	"strconv"
)

var hexColorRE = regexp.MustCompile(`^#[0-9a-fA-F]{6}([0-9a-fA-F]{2})?$`)

// IsHexColor reports whether value is #RRGGBB or #RRGGBBAA.
func IsHexColor(value string) bool {
	return hexColorRE.MatchString(value)
}

// ParseHexColor returns the color components of value in [0, 1].
// Alpha defaults to 1 when value has no alpha byte.
func ParseHexColor(value string) (r, g, b, a float32, err error) {
	if !IsHexColor(value) {
		return 0, 0, 0, 0, fmt.Errorf("%q must be a hex color like #RRGGBB or #RRGGBBAA", value)
	}

	component := func(i int) float32 {
		v, _ := strconv.ParseUint(value[i:i+2], 16, 8)
		return float32(v) / 255
	}

	r, g, b, a = component(1), component(3), component(5), 1
	if len(value) == 9 {
		a = component(7)
	}
	return r, g, b, a, nil
}
