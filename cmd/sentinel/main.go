package main

import (
	"os"

	"github.com/optryx/riskgate/cmd/sentinel/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
