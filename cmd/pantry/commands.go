package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/dukerupert/pantry/internal/backup"
	"github.com/dukerupert/pantry/internal/push"
	"github.com/dukerupert/pantry/internal/store"
)

const usage = `usage: pantry [command]

commands:
  serve              run the HTTP server (default)
  vapid-keys         print a new VAPID key pair for push reminders
  backup             take an encrypted backup now
  backups            list recent backups
  restore <id> [db]  restore a backup over db (default PANTRY_DB_PATH); stop the server first
`

func vapidKeys() error {
	pub, priv, err := push.GenerateVAPIDKeys()
	if err != nil {
		return err
	}
	fmt.Printf("PANTRY_VAPID_PUBLIC_KEY=%s\nPANTRY_VAPID_PRIVATE_KEY=%s\n", pub, priv)
	return nil
}

func runBackup() error {
	cfg, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	m := backup.NewManager(cfg.Backup, db, store.NewBackupStore(db), logger.With("component", "backup"))
	b, err := m.RunNow(context.Background())
	if err != nil {
		return err
	}
	fmt.Printf("backup %d uploaded to %s (%d bytes)\n", b.ID, b.S3Key, b.SizeBytes)

	removed, err := m.Cleanup(context.Background())
	if err != nil {
		return err
	}
	if removed > 0 {
		fmt.Printf("removed %d backups older than %d days\n", removed, cfg.Backup.RetentionDays)
	}
	return nil
}

func listBackups() error {
	cfg, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	m := backup.NewManager(cfg.Backup, db, store.NewBackupStore(db), logger.With("component", "backup"))
	backups, err := m.List(50)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSTATUS\tSIZE\tKEY")
	for _, b := range backups {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", b.ID, b.CreatedAt.Format("2006-01-02 15:04"), b.Status, b.SizeBytes, b.S3Key)
	}
	return w.Flush()
}

func restore(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("restore: backup id required\n%s", usage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("restore: invalid backup id %q", args[0])
	}

	cfg, logger, db, err := setup()
	if err != nil {
		return err
	}
	defer db.Close()

	dst := cfg.DBPath
	if len(args) > 1 {
		dst = args[1]
	}

	m := backup.NewManager(cfg.Backup, db, store.NewBackupStore(db), logger.With("component", "backup"))
	if err := m.RestoreTo(context.Background(), id, dst); err != nil {
		return err
	}
	fmt.Printf("restored backup %d to %s\n", id, dst)
	return nil
}
