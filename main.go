package main

import (
	"fmt"
	"os"

	"madrasah/cmd/madrasah"
)

func main() {
	if err := madrasah.Command.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
