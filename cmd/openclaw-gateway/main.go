// Copyright (c) 2025 Justin Cranford

// Package main is the openclaw-gateway entry point.
package main

import (
	"os"

	"github.com/CohesiumAI/openclaw-sub001/cmd/openclaw-gateway/command"
)

func main() {
	os.Exit(command.Execute(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
