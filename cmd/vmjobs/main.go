// Command vmjobs serves the vector model action endpoint and its
// background jobs over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := app().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "vmjobs:", err)
		os.Exit(1)
	}
}
