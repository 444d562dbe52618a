// Command authd serves the authentication routes and manages the database
// schema they depend on.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
