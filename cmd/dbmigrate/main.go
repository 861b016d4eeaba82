/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Command dbmigrate applies, rolls back and inspects database migrations and seeds.
//
// Connection parameters are read from a YAML or JSON file (--config) and from environment
// variables prefixed with DBMIGRATE_, e.g. DBMIGRATE_DB_DIALECT=postgres.
package main

import (
	"context"
	"os"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
