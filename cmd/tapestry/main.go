package main

import (
	"os"

	"github.com/pthm/tapestry/cmd/tapestry/cmd"
)

func main() {
	if err := cmd.GetRootCmd(os.Args[1:]).Execute(); err != nil {
		os.Exit(1)
	}
}
