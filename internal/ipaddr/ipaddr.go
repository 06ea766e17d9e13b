package ipaddr

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	ipv4Pattern = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)

	// Loose on purpose: group count and "::" compression are not enforced,
	// so some malformed IPv6 literals pass.
	ipv6Pattern = regexp.MustCompile(`^([0-9a-fA-F]{0,4}:){2,7}[0-9a-fA-F]{0,4}$`)
)

// IsValidAddress reports whether candidate looks like an IPv4 or IPv6 literal
func IsValidAddress(candidate string) bool {
	if ipv4Pattern.MatchString(candidate) {
		for _, octet := range strings.Split(candidate, ".") {
			n, err := strconv.Atoi(octet)
			if err != nil || n < 0 || n > 255 {
				return false
			}
		}
		return true
	}

	return ipv6Pattern.MatchString(candidate)
}
