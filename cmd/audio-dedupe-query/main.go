package main

import (
	"fmt"
	"os"

	"audio-dedupe/internal/exitcodes"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(exitcodes.RuntimeError)
	}
}
