// Command cleanup removes test accounts, or a single user, together with the
// records that reference them.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"mahatour/config"
	"mahatour/db"
	"mahatour/logging"
	"mahatour/maintenance"
	"mahatour/store"

	"go.uber.org/zap"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "count what would be removed without deleting")
	userID := flag.String("user", "", "remove this user instead of every test account")
	timeout := flag.Duration("timeout", 5*time.Minute, "give up after this long")
	flag.Parse()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "reading .env:", err)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log, err := logging.New(cfg.Env)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatal("mongo unavailable", zap.Error(err))
	}
	defer client.Disconnect(context.Background())

	purger := maintenance.NewPurger(store.NewMongo(client.Database(cfg.MongoDB)), log)

	var report maintenance.Report
	if *userID != "" {
		report, err = purger.RemoveUser(ctx, *userID, *dryRun)
	} else {
		report, err = purger.PurgeTestAccounts(ctx, *dryRun)
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
	if err != nil {
		log.Error("cleanup failed", zap.Error(err))
		os.Exit(1)
	}
}
