package device

import "strings"

// Helper functions for deriving the informational device attributes from the
// user agent string. These feed display fields only; trust decisions never
// read them.

// determineDeviceName extracts a human-readable device name from the user agent
func determineDeviceName(userAgent string) string {
	if userAgent == "" {
		return "Unknown Device"
	}

	// Check for common mobile devices
	if contains(userAgent, "iPhone") {
		return "iPhone"
	} else if contains(userAgent, "iPad") {
		return "iPad"
	} else if contains(userAgent, "Android") && (contains(userAgent, "Mobile") || contains(userAgent, "Pixel") || contains(userAgent, "Samsung") || contains(userAgent, "SM-")) {
		if contains(userAgent, "Pixel") {
			return "Google Pixel"
		} else if contains(userAgent, "Samsung") || contains(userAgent, "SM-") {
			return "Samsung Phone"
		}
		return "Android Phone"
	} else if contains(userAgent, "Android") {
		return "Android Tablet"
	}

	// Check for desktop operating systems
	if contains(userAgent, "Macintosh") || contains(userAgent, "Mac OS X") {
		return "Mac"
	} else if contains(userAgent, "Windows") {
		return "Windows PC"
	} else if contains(userAgent, "Linux") {
		return "Linux"
	} else if contains(userAgent, "CrOS") {
		return "Chromebook"
	}

	// Default to a generic name based on browser
	if contains(userAgent, "Chrome") {
		return "Chrome Browser"
	} else if contains(userAgent, "Firefox") {
		return "Firefox Browser"
	} else if contains(userAgent, "Safari") {
		return "Safari Browser"
	} else if contains(userAgent, "Edge") {
		return "Edge Browser"
	}

	return "Unknown Device"
}

// determineBrowser extracts the browser family from the user agent
func determineBrowser(userAgent string) string {
	if userAgent == "" {
		return ""
	}

	// Order matters: Edge and Opera embed "Chrome", Chrome embeds "Safari"
	if contains(userAgent, "Edg/") || contains(userAgent, "Edge") {
		return "Edge"
	} else if contains(userAgent, "OPR/") || contains(userAgent, "Opera") {
		return "Opera"
	} else if contains(userAgent, "Chrome") {
		return "Chrome"
	} else if contains(userAgent, "Firefox") {
		return "Firefox"
	} else if contains(userAgent, "Safari") {
		return "Safari"
	}

	return "Unknown"
}

// determineOS extracts the operating system family from the user agent
func determineOS(userAgent string) string {
	if userAgent == "" {
		return ""
	}

	if contains(userAgent, "iPhone") || contains(userAgent, "iPad") {
		return "iOS"
	} else if contains(userAgent, "Android") {
		return "Android"
	} else if contains(userAgent, "Windows") {
		return "Windows"
	} else if contains(userAgent, "Macintosh") || contains(userAgent, "Mac OS X") {
		return "macOS"
	} else if contains(userAgent, "CrOS") {
		return "ChromeOS"
	} else if contains(userAgent, "Linux") {
		return "Linux"
	}

	return "Unknown"
}

// determineDeviceType categorizes the device as mobile, tablet, desktop or other
func determineDeviceType(userAgent string) string {
	if userAgent == "" {
		return DeviceTypeOther
	}

	// Mobile devices
	if contains(userAgent, "iPhone") ||
		(contains(userAgent, "Android") && contains(userAgent, "Mobile")) ||
		contains(userAgent, "Windows Phone") {
		return DeviceTypeMobile
	}

	// Tablets
	if contains(userAgent, "iPad") ||
		(contains(userAgent, "Android") && !contains(userAgent, "Mobile")) {
		return DeviceTypeTablet
	}

	// Desktops
	if contains(userAgent, "Windows") ||
		contains(userAgent, "Macintosh") ||
		contains(userAgent, "Linux") ||
		contains(userAgent, "CrOS") {
		return DeviceTypeDesktop
	}

	return DeviceTypeOther
}

// contains is a helper function to check if a string contains a substring (case insensitive)
func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
