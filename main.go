// The main package for the skillscrawler executable.
package main

import (
	"context"

	"github.com/JakeFAU/job-skills-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute(context.Background())
}
