//go:build !profile

package prof

// Enabled reports whether the binary was built with the "profile" tag.
const Enabled = false

// Profiling errors (defined for API compatibility but never returned by stubs).
var (
	ErrActive         error
	ErrNotActive      error
	ErrInvalidProfile error
)

// Start is a no-op when built without the "profile" tag.
func Start(_ Options) error {
	return nil
}

// Stop is a no-op when built without the "profile" tag.
func Stop() error {
	return nil
}

// Active always returns false when built without the "profile" tag.
func Active() bool {
	return false
}
