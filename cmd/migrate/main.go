// migrate manages the documents schema used by DAO=document; run with go run ./cmd/migrate.
package main

import (
	"flag"
	"fmt"
	"os"

	"user-session-service/internal/config"
	"user-session-service/internal/db/migrate"
)

func main() {
	direction := flag.String("direction", "up", "Migration direction: up or down")
	list := flag.Bool("list", false, "List the embedded migrations and exit")
	flag.Parse()

	if *list {
		all, err := migrate.Migrations()
		if err != nil {
			fmt.Fprintln(os.Stderr, "migrations:", err)
			os.Exit(1)
		}
		for _, m := range all {
			fmt.Printf("%06d %s\n", m.Version, m.Name)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.DAO != config.DAODocument {
		fmt.Fprintf(os.Stderr, "DAO=%s has no schema to migrate\n", cfg.DAO)
		return
	}

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	version, dirty, err := migrate.Version(cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "version:", err)
		os.Exit(1)
	}
	fmt.Printf("schema version %d (dirty=%v)\n", version, dirty)
}
