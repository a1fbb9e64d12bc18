package main

import (
	"os"

	"github.com/wonny/vertex/cmd/vertex/commands"
)

// main is the entry point for the Vertex CLI
// ⭐ 통합 CLI 진입점: go run ./cmd/vertex [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
