package db

import (
	"fmt"
	"io"
	"strconv"
)

// RunMigrateCommand runs one 'migrate' action against database and writes a
// human summary to w.
func RunMigrateCommand(w io.Writer, database *DB, args []string) error {
	if len(args) < 1 {
		PrintMigrateHelp(w)
		return fmt.Errorf("missing migrate action")
	}

	switch action := args[0]; action {
	case "up":
		if err := database.MigrateUp(); err != nil {
			return err
		}
		return printVersion(w, database)

	case "down":
		if err := database.MigrateDown(); err != nil {
			return err
		}
		return printVersion(w, database)

	case "status":
		status, err := database.GetMigrationStatus()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: version %d of %d (dirty: %v, pending: %d)\n",
			database.Path(), status.Current, status.Latest, status.Dirty, status.Pending())
		if status.Dirty {
			fmt.Fprintln(w, "A migration failed mid-execution. Inspect the database, then run: lmt-report migrate force <version>")
		}
		return nil

	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: lmt-report migrate force <version> <db...>")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version number %q: %w", args[1], err)
		}
		if err := database.MigrateForce(v); err != nil {
			return err
		}
		return printVersion(w, database)

	case "help":
		PrintMigrateHelp(w)
		return nil

	default:
		PrintMigrateHelp(w)
		return fmt.Errorf("unknown migrate action: %s", action)
	}
}

func printVersion(w io.Writer, database *DB) error {
	version, dirty, err := database.MigrateVersion()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: version %d (dirty: %v)\n", database.Path(), version, dirty)
	return nil
}

// PrintMigrateHelp writes the help text for the migrate command.
func PrintMigrateHelp(w io.Writer) {
	fmt.Fprint(w, `Usage: lmt-report migrate <action> <db files or directories...>

Actions:
  up           Apply all pending migrations
  down         Roll back one migration
  status       Show current and latest migration versions
  force <N>    Set the migration version to N (recovery only)
  help         Show this help message
`)
}
