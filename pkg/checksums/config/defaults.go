// Package config provides configuration management for checksums.
package config

import (
	"github.com/jamesainslie/checksums/pkg/checksums/manifest"
	"github.com/jamesainslie/checksums/pkg/checksums/report"
)

// AppName names the XDG directories and the environment prefix.
const AppName = "checksums"

// Default configuration values.
const (
	// DefaultChunkSize is the read size used while hashing.
	DefaultChunkSize = "16KiB"

	// DefaultManifestName is the file generate writes under its root.
	DefaultManifestName = manifest.DefaultName

	// DefaultLogName is the verify log written next to the manifest.
	DefaultLogName = report.DefaultName

	// DefaultOutput is the report format for non-interactive runs.
	DefaultOutput = "pretty"

	// DefaultRetentionDays is how long session history is kept.
	DefaultRetentionDays = 30

	// DefaultLogLevel is the application log level.
	DefaultLogLevel = "info"
)

// DefaultExclusions are skipped by generate unless overridden.
var DefaultExclusions = []string{
	".git",
	".DS_Store",
}
