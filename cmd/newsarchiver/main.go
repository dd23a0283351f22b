// The main package for the newsarchiver executable.
package main

import (
	"github.com/HsienYu/BreakingNewsEffects/cmd"
)

// main is the entry point of the application. It defers all execution to
// the Cobra CLI library.
func main() {
	cmd.Execute()
}
