package cmd

// version is set at build time using -ldflags.
var version = "0.1.0"

// Version returns the build version of the binary.
func Version() string {
	return version
}
