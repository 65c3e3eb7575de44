package main

import (
	"os"

	"github.com/rtsptool/rtsptool/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
