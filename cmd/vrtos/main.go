package main

import (
	"fmt"
	"os"

	"github.com/tebeka/atexit"

	"vrtos/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
