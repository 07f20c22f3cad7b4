// Command packassist is the operator CLI: an interactive chat against the
// triage engine and a seeder for known failures and CMS logs.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
