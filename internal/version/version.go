package version

import (
	_ "embed"
	"strings"
)

//go:embed version.txt
var versionFile string

// Version returns the current eviscape toolkit version
func Version() string {
	return strings.TrimSpace(versionFile)
}

// UserAgent is sent with every API request
func UserAgent() string {
	return "eviscape-go/" + Version()
}
