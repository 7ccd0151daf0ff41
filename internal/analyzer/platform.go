package analyzer

import (
	"strings"
)

// Platform names a target runtime with its own capability table.
type Platform string

const (
	Windows Platform = "windows"
	Linux   Platform = "linux"
	MacOS   Platform = "macos"
)

// ParsePlatform maps a user-facing platform name onto a Platform. It reports
// false for empty or unrecognized names.
func ParsePlatform(s string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "windows", "win":
		return Windows, true
	case "linux":
		return Linux, true
	case "macos", "mac", "darwin", "osx":
		return MacOS, true
	}
	return "", false
}

// Capabilities maps each platform to the object probe tags it can evaluate.
type Capabilities map[Platform][]string

// DefaultCapabilities returns the built-in probe tables.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		Windows: {
			"registry_object", "win-def:registry_object", "windows-def:registry_object",
			"file_object", "auditeventpolicysubcategories_object", "family_object",
			"lockoutpolicy_object", "passwordpolicy_object", "user_sid_object",
			"sid_sid_object", "user_sid55_object", "userright_object",
		},
		Linux: {
			"dpkginfo_object", "textfilecontent54_object", "systemdunitproperty_object",
			"rpminfo_object", "file_object", "partition_object", "uname_object",
			"sysctl_object", "sshd_object", "modprobe_object", "variable_object",
		},
		MacOS: {
			"plist511_object", "textfilecontent54_object", "account_pwpolicy_object",
			"authorizationdb_object", "open_directory_object", "launchctl_object",
			"pmset_object", "profiles_object", "sip_object", "systemsetup_v2_object",
			"userdefaults_object", "file_object",
		},
	}
}

func (c Capabilities) sets() map[Platform]map[string]bool {
	out := make(map[Platform]map[string]bool, len(c))
	for p, tags := range c {
		set := make(map[string]bool, len(tags))
		for _, t := range tags {
			set[t] = true
		}
		out[p] = set
	}
	return out
}
