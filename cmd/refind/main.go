package main

import (
	"fmt"
	"os"

	"refind/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "refind: %v\n", err)
		os.Exit(1)
	}
}
