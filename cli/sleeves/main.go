package main

import (
	"os"

	sleevescmder "github.com/papercomputeco/sleeves/cmd/sleeves"
)

func main() {
	cmd := sleevescmder.NewSleevesCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
