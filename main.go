package main

import (
	"os"

	"github.com/birchwood-sourdough/orders/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
