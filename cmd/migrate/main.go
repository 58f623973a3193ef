// Copyright 2026 The Resource-E Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command migrate applies the embedded schema migrations with goose. The
// connection string comes from the same environment as the server, or from
// the first command-line argument.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"

	"github.com/zcamb1/resource-e/internal/config"
	"github.com/zcamb1/resource-e/internal/store/postgres"
	"github.com/zcamb1/resource-e/internal/store/postgres/migrations"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()

	connStr, err := connectionString()
	if err != nil {
		log.Fatalf("Failed to resolve connection string: %v", err)
	}

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping: %v", err)
	}

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		log.Fatalf("Failed to set dialect: %v", err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	fmt.Println("Migrations applied successfully.")
}

func connectionString() (string, error) {
	if len(os.Args) > 1 {
		return os.Args[1], nil
	}

	cfg, err := config.Load()
	if err != nil {
		return "", err
	}

	return postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	}.DSN(), nil
}
