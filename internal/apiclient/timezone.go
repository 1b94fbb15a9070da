package apiclient

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const localtimePath = "/etc/localtime"

// DetectTimezone returns the IANA name of the local zone: $TZ, then the
// /etc/localtime link target, then UTC.
func DetectTimezone() string {
	if tz := strings.TrimPrefix(os.Getenv("TZ"), ":"); tz != "" && validZone(tz) {
		return tz
	}
	if target, err := filepath.EvalSymlinks(localtimePath); err == nil {
		if name := zoneFromPath(target); name != "" && validZone(name) {
			return name
		}
	}
	if name := time.Local.String(); name != "Local" && validZone(name) {
		return name
	}
	return "UTC"
}

// zoneFromPath extracts "Europe/Paris" from ".../zoneinfo/Europe/Paris".
func zoneFromPath(p string) string {
	const marker = "zoneinfo/"
	i := strings.LastIndex(p, marker)
	if i < 0 {
		return ""
	}
	return p[i+len(marker):]
}

func validZone(name string) bool {
	_, err := time.LoadLocation(name)
	return err == nil
}
