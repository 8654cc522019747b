//go:build !unix

package local

// deviceID is unknown on this platform; commits always copy.
func deviceID(path string) (uint64, bool) {
	return 0, false
}
