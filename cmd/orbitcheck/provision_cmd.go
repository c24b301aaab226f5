package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/guillemso1er/orbitcheck-sub001/pkg/auth"
	"github.com/guillemso1er/orbitcheck-sub001/pkg/store"
)

// runProvisionCmd bootstraps a tenant: project row, API key, and
// optionally an owner user with a personal access token. Secrets are
// printed exactly once.
func runProvisionCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("provision", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		name    string
		email   string
		withPAT bool
	)
	fs.StringVar(&name, "name", "", "project name (REQUIRED)")
	fs.StringVar(&email, "email", "", "owner email; creates the user personal tokens belong to")
	fs.BoolVar(&withPAT, "pat", false, "also mint a personal access token")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(stderr, "Error: --name is required")
		fs.Usage()
		return 2
	}

	ctx := context.Background()
	cfg, db, err := openConfigured(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "provision: %v\n", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	project := &store.Project{Name: name}
	if err := store.NewProjectStore(db).Create(ctx, project); err != nil {
		fmt.Fprintf(stderr, "provision: create project: %v\n", err)
		return 1
	}

	key, prefix, hash, err := auth.GenerateAPIKey()
	if err != nil {
		fmt.Fprintf(stderr, "provision: generate key: %v\n", err)
		return 1
	}
	rec := &auth.APIKeyRecord{ProjectID: project.ID, Prefix: prefix, Hash: hash}
	if cfg.EncryptionKey != nil {
		crypt, err := auth.NewKeyCrypt(cfg.EncryptionKey)
		if err != nil {
			fmt.Fprintf(stderr, "provision: %v\n", err)
			return 1
		}
		sealed, err := crypt.Seal([]byte(key))
		if err != nil {
			fmt.Fprintf(stderr, "provision: seal key: %v\n", err)
			return 1
		}
		rec.EncryptedKey = sealed
	} else {
		fmt.Fprintln(stderr, "warning: ENCRYPTION_KEY not set; this key will not work for HMAC requests")
	}

	creds := store.NewCredentialStore(db)
	if err := creds.CreateAPIKey(ctx, rec); err != nil {
		fmt.Fprintf(stderr, "provision: store key: %v\n", err)
		return 1
	}

	var userID string
	if email != "" {
		user := &store.User{Email: email, ProjectID: project.ID}
		if err := store.NewUserStore(db).Create(ctx, user); err != nil {
			fmt.Fprintf(stderr, "provision: create user: %v\n", err)
			return 1
		}
		userID = user.ID
		fmt.Fprintf(stdout, "user_id:    %s\n", user.ID)
	}

	fmt.Fprintf(stdout, "project_id: %s\n", project.ID)
	fmt.Fprintf(stdout, "api_key:    %s\n", key)

	if withPAT {
		pepper := auth.DerivePepper(cfg.EncryptionKey, cfg.SessionSecret)
		token, tokenID, secretHash, err := auth.GeneratePAT(pepper)
		if err != nil {
			fmt.Fprintf(stderr, "provision: generate pat: %v\n", err)
			return 1
		}
		patRec := &auth.PATRecord{
			ID:         tokenID,
			UserID:     userID,
			ProjectID:  project.ID,
			SecretHash: secretHash,
		}
		if err := creds.CreatePAT(ctx, patRec); err != nil {
			fmt.Fprintf(stderr, "provision: store pat: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "pat:        %s\n", token)
	}

	fmt.Fprintln(stdout, "Store these now; secrets are not retrievable later.")
	return 0
}
