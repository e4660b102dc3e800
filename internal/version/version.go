// ABOUTME: Version constants for the playback engine
// ABOUTME: Reported at startup and available to embedding applications
package version

const (
	// Version is the engine release version.
	Version = "0.1.0"

	// Product is the engine name as reported in logs.
	Product = "playsync"
)
