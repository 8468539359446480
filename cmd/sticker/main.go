package main

import (
	"os"

	"github.com/MeKo-Tech/sticker/cmd/sticker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
