// Package main is the entry point for the leadblitz binary.
package main

import "github.com/lauravimes/leadblitz/cmd"

func main() {
	cmd.Execute()
}
