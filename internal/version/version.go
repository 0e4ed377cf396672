// ABOUTME: Version and product identification
// ABOUTME: Version is overridden at build time with -ldflags
package version

// Version is the release version, set with -ldflags "-X .../internal/version.Version=v1.2.3"
var Version = "0.1.0-dev"

const (
	// Product is the product name reported by the CLI
	Product = "buzz"

	// Manufacturer is reported alongside the product
	Manufacturer = "Resonate Protocol"
)

// String returns the product and version
func String() string {
	return Product + " " + Version
}
