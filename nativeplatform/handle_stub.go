//go:build !windows && !linux

package nativeplatform

func nativeLoaders() map[string]Loader {
	return map[string]Loader{}
}
