// Command token mints a development bearer token for the todo API using the
// configured auth secret.
//
//	go run ./cmd/token -user 1 -ttl 24h
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Tomlord1122/todo-tracker/internal/config"
	"github.com/Tomlord1122/todo-tracker/internal/server"
)

func main() {
	userID := flag.Uint("user", 0, "owner id to put in the token subject")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	token, err := server.NewAuthenticator(cfg.Auth).Issue(*userID, *ttl)
	if err != nil {
		slog.Error("failed to issue token", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Println(token)
}
