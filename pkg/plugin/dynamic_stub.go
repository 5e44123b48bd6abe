//go:build !plugindyn || !linux

package plugin

// LoadDynamicPlugins always fails in this build.
func LoadDynamicPlugins(string) error {
	return ErrDynamicUnsupported
}
