// The main package for the besstrack executable.
package main

import (
	"github.com/gridscope/besstrack/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
