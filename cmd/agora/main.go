// Command agora is a local record store for structured debates.
package main

import (
	"os"

	"github.com/roach88/agora/internal/cli"
)

func main() {
	os.Exit(cli.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
