package main

import "github.com/aussiebroadwan/gatekeep/cmd/gatekeep/cmd"

// version is overridden at build time via -ldflags.
var version = "v0.1.0"

func main() {
	cmd.Execute(version)
}
