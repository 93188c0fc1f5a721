package main

import (
	"fmt"
	"os"

	"github.com/jcomeauictx/blockparser/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "parser: %v\n", err)
		os.Exit(1)
	}
}
