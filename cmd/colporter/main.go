package main

import (
	"fmt"
	"os"

	"github.com/dgallion1/colporter/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "colporter:", err)
		os.Exit(1)
	}
}
