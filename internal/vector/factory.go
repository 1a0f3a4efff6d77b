package vector

import (
	"fmt"
	"strings"
)

// Driver names the backend holding a collection.
type Driver string

const (
	// DriverLocal keeps the collection in a JSON snapshot and searches it by brute force.
	// Good for small collections (a few thousand vectors).
	DriverLocal Driver = "local"
	// DriverPinecone keeps the collection in a Pinecone index namespace.
	DriverPinecone Driver = "pinecone"
)

// ParseDriver maps a configuration value to a Driver.
// Supported values: "local" (default, also for ""), "pinecone".
func ParseDriver(name string) (Driver, error) {
	switch Driver(strings.ToLower(strings.TrimSpace(name))) {
	case DriverLocal, "":
		return DriverLocal, nil
	case DriverPinecone:
		return DriverPinecone, nil
	default:
		return "", fmt.Errorf("unknown vector driver: %s (supported: local, pinecone)", name)
	}
}
