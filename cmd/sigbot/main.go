package main

import (
	"os"

	"github.com/dumbCodesOnly/SigV0.01/cmd/sigbot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
