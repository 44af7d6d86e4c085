// Package device renders User-Agent strings into short human-readable labels
// for login records.
package device

import (
	"github.com/mssola/useragent"
)

// ParseUserAgent parses a raw User-Agent header into a display label such as
// "Chrome 120 on Mac OS X" or "Mobile Safari on iPhone". Unknown agents come
// back as "Unknown Device".
func ParseUserAgent(rawUserAgent string) string {
	if rawUserAgent == "" {
		return "Unknown Device"
	}
	ua := useragent.New(rawUserAgent)
	name, version := ua.Browser()
	if name == "" {
		return "Unknown Device"
	}
	label := name
	if version != "" {
		label += " " + majorVersion(version)
	}
	// Mobile platforms ("iPhone", "Android") read better than their parsed
	// OS names.
	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			label += " on " + platform
		}
		return "Mobile " + label
	}
	if os := ua.OSInfo().Name; os != "" {
		label += " on " + os
	}
	return label
}

func majorVersion(version string) string {
	for i := 0; i < len(version); i++ {
		if version[i] == '.' {
			return version[:i]
		}
	}
	return version
}
