package main

import (
	"context"
	"fmt"
	"os"

	"github.com/Sternrassler/ipintel-client/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.NewRoot(version).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
