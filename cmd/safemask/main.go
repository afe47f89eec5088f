package main

import (
	"os"

	"github.com/MathFreedom/SafeMask/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
