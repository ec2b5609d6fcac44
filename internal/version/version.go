// ABOUTME: Version information for the Live Planting listener
// ABOUTME: Product identity shown in the TUI and reported to servers
package version

// Version is overridden at build time with -ldflags "-X ...version.Version=..."
var Version = "0.1.0"

const (
	Product      = "Live Planting Listener"
	Manufacturer = "Live Planting"
)

// String returns the product and version for display
func String() string {
	return Product + " " + Version
}
