package validation

import (
	"net/url"
	"strings"
)

func ValidateSize(prefix string, width, height int) []string {
	var errs []string
	if width <= 0 {
		errs = append(errs, prefix+".width must be positive")
	}
	if height <= 0 {
		errs = append(errs, prefix+".height must be positive")
	}
	return errs
}

// ValidateSizeConstraints checks optional min/max sizes. Zero means unset.
func ValidateSizeConstraints(prefix string, minW, minH, maxW, maxH int) []string {
	var errs []string
	if minW < 0 || minH < 0 || maxW < 0 || maxH < 0 {
		errs = append(errs, prefix+" size constraints must not be negative")
		return errs
	}
	if maxW > 0 && minW > maxW {
		errs = append(errs, prefix+".min_width exceeds max_width")
	}
	if maxH > 0 && minH > maxH {
		errs = append(errs, prefix+".min_height exceeds max_height")
	}
	return errs
}

func ValidateNavigationURL(value string) []string {
	var errs []string
	value = strings.TrimSpace(value)
	if value == "" {
		errs = append(errs, "url cannot be empty")
		return errs
	}

	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme == "" {
		errs = append(errs, "url must be absolute with a scheme")
	}
	return errs
}

func ValidateListenAddress(value string) []string {
	var errs []string
	value = strings.TrimSpace(value)
	if value == "" {
		errs = append(errs, "listen address cannot be empty")
		return errs
	}
	if !strings.Contains(value, ":") {
		errs = append(errs, "listen address must be host:port")
	}
	return errs
}
