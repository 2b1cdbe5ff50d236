package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/final-year-project/doubtfire-api/internal/auth"
	"github.com/final-year-project/doubtfire-api/internal/config"
	"github.com/final-year-project/doubtfire-api/internal/domain"
)

// issue-token prints a signed bearer token for local development.
func main() {
	userID := flag.Int64("user-id", 0, "LMS user id to put in the sub claim")
	role := flag.String("role", string(domain.RoleTutor), "role claim (informational; the stored role is authoritative)")
	flag.Parse()

	if *userID <= 0 {
		flag.Usage()
		os.Exit(2)
	}
	if !domain.Role(*role).Valid() {
		log.Fatalf("unknown role %q", *role)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	token, expiresAt, err := tokens.GenerateToken(*userID, domain.Role(*role))
	if err != nil {
		log.Fatalf("failed to sign token: %v", err)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
}
