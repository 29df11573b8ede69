package service

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"dblog/app/config"
	"dblog/app/repositories"
)

// DefaultBackupDir is where backup writes when no file is given.
const DefaultBackupDir = "data/backups"

// HandleDBCommand handles database maintenance subcommands and returns an exit code.
func HandleDBCommand(cfg *config.Config, args []string) int {
	if len(args) < 1 {
		printDBHelp()
		osExit(1)
		return 1
	}

	dbPath := cfg.Node.DBPath
	cmd := args[0]
	switch cmd {
	case "clean":
		return clean(dbPath, hasYesFlag(args[1:]))
	case "init":
		return initDb(dbPath, cfg.BlogName)
	case "backup":
		out := ""
		if len(args) > 1 {
			out = args[1]
		}
		return backup(dbPath, out)
	case "restore":
		if len(args) < 2 {
			fmt.Println("Error: backup file path required for restore")
			osExit(1)
			return 1
		}
		return restore(dbPath, args[1], hasYesFlag(args[2:]))
	case "help":
		printDBHelp()
		return 0
	default:
		fmt.Printf("Unknown db command: %s\n\n", cmd)
		printDBHelp()
		osExit(1)
		return 1
	}
}

// printDBHelp prints help for db subcommands.
func printDBHelp() {
	helpText := `Usage: dblog db <command>

Commands:
  init                            Initialize a new registry database
  clean [--yes]                   Delete the registry database
  backup [file]                   Write a backup (default data/backups/backup_<unix>.db)
  restore <file> [--yes]          Replace the database with a backup
  help                            Display this help message

The database path comes from DBLOG_DB_PATH.
`
	fmt.Println(helpText)
}

func hasYesFlag(args []string) bool {
	fs := flag.NewFlagSet("db", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	yes := fs.Bool("yes", false, "skip confirmation")
	fs.Parse(args)
	return *yes
}

func dbExists(dbPath string) bool {
	_, err := os.Stat(dbPath)
	return err == nil
}

// clean removes the database.
func clean(dbPath string, yes bool) int {
	if !dbExists(dbPath) {
		fmt.Println("Database is already clean (does not exist)")
		return 0
	}

	if !yes && !confirm("Are you sure you want to clean the database? This cannot be undone.") {
		fmt.Println("Operation cancelled")
		return 1
	}

	if err := os.RemoveAll(dbPath); err != nil {
		fmt.Printf("Failed to clean database: %v\n", err)
		return 1
	}
	fmt.Println("Database cleaned successfully")
	return 0
}

// initDb creates the database and records the blog name.
func initDb(dbPath, blogName string) int {
	if dbExists(dbPath) {
		fmt.Println("Database already exists. Use 'clean' first if you want to reinitialize.")
		return 1
	}

	db, err := repositories.OpenDB(dbPath)
	if err != nil {
		fmt.Printf("Failed to initialize database: %v\n", err)
		return 1
	}
	defer db.Close()

	registry, err := repositories.NewBadgerRegistry(db, blogName)
	if err != nil {
		fmt.Printf("Failed to initialize registry: %v\n", err)
		return 1
	}

	fmt.Printf("Database initialized successfully for %q\n", registry.Name())
	return 0
}

// backup writes a full backup of the database.
func backup(dbPath, backupFile string) int {
	if !dbExists(dbPath) {
		fmt.Println("No database exists to backup")
		return 1
	}

	if backupFile == "" {
		backupFile = filepath.Join(DefaultBackupDir, fmt.Sprintf("backup_%d.db", time.Now().Unix()))
	}
	if err := os.MkdirAll(filepath.Dir(backupFile), 0755); err != nil {
		fmt.Printf("Failed to create backup directory: %v\n", err)
		return 1
	}

	db, err := repositories.OpenDB(dbPath)
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	f, err := os.Create(backupFile)
	if err != nil {
		fmt.Printf("Failed to create backup file: %v\n", err)
		return 1
	}
	defer f.Close()

	if _, err := db.Backup(f, 0); err != nil {
		fmt.Printf("Failed to backup database: %v\n", err)
		return 1
	}

	fmt.Printf("Database backed up successfully to %s\n", backupFile)
	return 0
}

// restore replaces the database with the contents of a backup.
func restore(dbPath, backupFile string, yes bool) int {
	f, err := os.Open(backupFile)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Backup file does not exist: %s\n", backupFile)
		return 1
	}
	if err != nil {
		fmt.Printf("Failed to open backup file: %v\n", err)
		return 1
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		fmt.Printf("Failed to stat backup file: %v\n", err)
		return 1
	}
	if fi.Size() == 0 {
		fmt.Printf("Backup file is empty: %s\n", backupFile)
		return 1
	}

	if dbExists(dbPath) {
		if !yes && !confirm("Existing database found. Do you want to replace it?") {
			fmt.Println("Operation cancelled")
			return 1
		}
		if err := os.RemoveAll(dbPath); err != nil {
			fmt.Printf("Failed to remove existing database: %v\n", err)
			return 1
		}
	}

	db, err := repositories.OpenDB(dbPath)
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	err = func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic occurred during restore: %v", r)
			}
		}()
		return db.Load(f, 4)
	}()
	if err != nil {
		fmt.Printf("Failed to restore database: %v\n", err)
		return 1
	}

	fmt.Println("Database restored successfully")
	return 0
}
