// Package database opens and migrates vesyncd's SQLite history store.
//
// The store holds the mirrored device tables the poller writes after
// every cycle and the history API reads from. The file is opened with
// WAL mode (readers do not block the poller's writes), foreign keys on,
// a busy timeout, and 0600 permissions. Schema migrations are embedded
// in the binary and applied at startup; they are additive-only, so a
// newer binary can always open an older database.
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
