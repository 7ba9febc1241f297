package main

import (
	"fmt"
	"os"

	"github.com/hs094/Deepseek-Local-RAG-Agent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
