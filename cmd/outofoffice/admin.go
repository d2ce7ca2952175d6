package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dukerupert/outofoffice/internal/config"
	"github.com/dukerupert/outofoffice/internal/database"
	"github.com/dukerupert/outofoffice/internal/store"
)

func userCommand(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] != "add" {
		return fmt.Errorf("usage: outofoffice user add -email EMAIL -username NAME [-name NAME] [-locale LOCALE]")
	}

	fs := flag.NewFlagSet("user add", flag.ContinueOnError)
	fs.SetOutput(out)
	emailAddr := fs.String("email", "", "email address (required)")
	username := fs.String("username", "", "unique username (required)")
	name := fs.String("name", "", "display name")
	locale := fs.String("locale", "en", "language for notifications this user sends")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	*emailAddr = strings.TrimSpace(*emailAddr)
	*username = strings.TrimSpace(*username)
	if *emailAddr == "" || *username == "" {
		return fmt.Errorf("user add: -email and -username are required")
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	u, err := store.NewUserStore(db).Create(ctx, *emailAddr, *username, *name, *locale)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created user %d (%s)\n", u.ID, u.Username)
	return nil
}

func sessionCommand(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] != "issue" {
		return fmt.Errorf("usage: outofoffice session issue -email EMAIL [-ttl DURATION]")
	}

	fs := flag.NewFlagSet("session issue", flag.ContinueOnError)
	fs.SetOutput(out)
	emailAddr := fs.String("email", "", "email of the user to sign in (required)")
	ttl := fs.Duration("ttl", cfg.SessionTTL, "session lifetime")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if strings.TrimSpace(*emailAddr) == "" {
		return fmt.Errorf("session issue: -email is required")
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	u, err := store.NewUserStore(db).GetByEmail(ctx, strings.TrimSpace(*emailAddr))
	if err != nil {
		return err
	}
	if u == nil {
		return fmt.Errorf("session issue: no user with email %q", *emailAddr)
	}

	sess, err := store.NewSessionStore(db).Create(ctx, u.ID, *ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, sess.Token)
	return nil
}
