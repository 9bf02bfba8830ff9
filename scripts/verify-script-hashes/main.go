// Command verify-script-hashes audits every stored script version against
// its content_hash and lists the rows that no longer verify.
//
// Usage:
//
//	DATABASE_URL=postgres://... go run ./scripts/verify-script-hashes
//
// Script versions are immutable, so the tool never rewrites a hash. A
// mismatch means the row was edited outside the service and needs a human
// to look at it. Exits 1 when any row fails.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/ashita-ai/kantoku/internal/integrity"
)

func main() {
	bad, err := run()
	if err != nil {
		log.Fatal(err)
	}
	if bad > 0 {
		os.Exit(1)
	}
}

func run() (int, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return 0, fmt.Errorf("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return 0, fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	rows, err := pool.Query(ctx,
		`SELECT id, owner_id, script_type, version, content, content_hash
		 FROM scripts
		 ORDER BY owner_id, script_type, version`)
	if err != nil {
		return 0, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var total, bad int
	for rows.Next() {
		var (
			id          uuid.UUID
			ownerID     string
			scriptType  string
			version     int
			content     string
			contentHash string
		)
		if err := rows.Scan(&id, &ownerID, &scriptType, &version, &content, &contentHash); err != nil {
			return bad, fmt.Errorf("scan: %w", err)
		}
		total++
		if !integrity.VerifyScriptHash(contentHash, ownerID, scriptType, version, content) {
			bad++
			fmt.Printf("MISMATCH %s owner=%q type=%s version=%d\n", id, ownerID, scriptType, version)
		}
	}
	if err := rows.Err(); err != nil {
		return bad, fmt.Errorf("rows: %w", err)
	}

	fmt.Printf("scanned %d script versions, %d failed verification\n", total, bad)
	return bad, nil
}
