package store

import "fmt"

// Backend names accepted by OpenerFor.
const (
	BackendSQLite = "sqlite"
	BackendBolt   = "bolt"
	BackendMemory = "memory"
)

// OpenerFor resolves a backend name and path into an Opener.
func OpenerFor(backend, path string) (Opener, error) {
	switch backend {
	case BackendSQLite, "":
		if path == "" {
			return nil, fmt.Errorf("sqlite store needs a path")
		}
		return OpenSQLite(path), nil
	case BackendBolt:
		if path == "" {
			return nil, fmt.Errorf("bolt store needs a path")
		}
		return OpenBolt(path), nil
	case BackendMemory:
		return NewMemory().Opener(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
