package main

import (
	"github.com/ksyq12/omero-certificates/internal/cli"
)

// version is set by goreleaser via ldflags
var version = "dev"

func main() {
	cli.SetVersion(version)
	cli.Execute()
}
