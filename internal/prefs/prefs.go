// Package prefs is the narrow client-side preference store: opaque string
// values behind Get/Set. The engine core never depends on it; it only serves
// locally remembered knobs like the last-selected resource.
package prefs

// Store is the full surface consumers see.
type Store interface {
	// Get returns the stored value and whether the key was present.
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Close() error
}

// Well-known preference keys used by the agent.
const (
	KeyLastResource = "last_resource_key"
	KeyPollInterval = "poll_interval"
)
