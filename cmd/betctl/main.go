// Command betctl is the operator and participant CLI for the bet engine. It
// signs requests with an Ethereum key and sends them to the engine's HTTP API.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
