// Package main provides a CLI tool for generating participant tokens for the
// development registration backend. Tokens are signed with the dev key unless
// JWT_SIGNING_KEY is set and will NOT work against production.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	jwttoken "hackmate/internal/jwt_token"
	"hackmate/internal/platform/config"
	"hackmate/internal/registration/models"
)

type tokenOutput struct {
	Token     string            `json:"token"`
	Type      string            `json:"type"`
	ExpiresIn string            `json:"expires_in,omitempty"`
	Claims    map[string]any    `json:"claims,omitempty"`
	Usage     map[string]string `json:"usage"`
}

func main() {
	config.LoadDotEnv()
	cfg := config.DevBackendFromEnv()

	participantCmd := flag.NewFlagSet("participant", flag.ExitOnError)
	adminCmd := flag.NewFlagSet("admin", flag.ExitOnError)

	pID := participantCmd.String("id", "", "Participant ID (UUID). Generated if empty.")
	pEmail := participantCmd.String("email", "asha@example.com", "Participant email")
	pName := participantCmd.String("name", "Asha Rao", "Participant name")
	pPhone := participantCmd.String("phone", "9876543210", "Participant phone")
	pTTL := participantCmd.Duration("ttl", jwttoken.DefaultTTL, "Token time-to-live")
	pJSON := participantCmd.Bool("json", false, "Output as JSON")

	adminJSON := adminCmd.Bool("json", false, "Output as JSON")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "participant":
		_ = participantCmd.Parse(os.Args[2:])
		p := models.Participant{
			ID:    parseOrGenerateUUID(*pID),
			Email: *pEmail,
			Name:  *pName,
			Phone: *pPhone,
		}
		out, err := participantToken(cfg.JWTSigningKey, p, *pTTL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
			os.Exit(1)
		}
		emit(os.Stdout, out, *pJSON)
	case "admin":
		_ = adminCmd.Parse(os.Args[2:])
		emit(os.Stdout, adminToken(cfg.AdminToken), *adminJSON)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`tokengen - Generate tokens for the hackmate dev backend

WARNING: Tokens use the dev signing key (or JWT_SIGNING_KEY) and will NOT work
         in production. Only use for local development and testing.

Usage:
  tokengen <command> [flags]

Commands:
  participant   Issue a participant bearer token (JWT)
  admin         Show the admin API token

Examples:
  # Token for a fresh participant
  tokengen participant

  # Token for a known participant, valid for one hour
  tokengen participant -id "550e8400-e29b-41d4-a716-446655440000" -ttl 1h

  # Admin token for the X-Admin-Token header
  tokengen admin

Use "tokengen <command> -h" for more information about a command.`)
}

func participantToken(signingKey string, p models.Participant, ttl time.Duration) (tokenOutput, error) {
	svc := jwttoken.NewJWTService(signingKey, jwttoken.WithTTL(ttl))
	token, err := svc.IssueParticipantToken(p)
	if err != nil {
		return tokenOutput{}, err
	}
	return tokenOutput{
		Token:     token,
		Type:      "participant_token",
		ExpiresIn: svc.TTL().String(),
		Claims: map[string]any{
			"sub":   p.ID,
			"email": p.Email,
			"name":  p.Name,
			"phone": p.Phone,
		},
		Usage: map[string]string{
			"header":   "Authorization: Bearer <token>",
			"regwatch": fmt.Sprintf("regwatch -participant-id %s -email %s -token <token>", p.ID, p.Email),
		},
	}, nil
}

func adminToken(token string) tokenOutput {
	return tokenOutput{
		Token: token,
		Type:  "admin_token",
		Usage: map[string]string{
			"header": "X-Admin-Token: " + token,
			"note":   "Matches ADMIN_API_TOKEN of the running devbackend",
		},
	}
}

func emit(w io.Writer, out tokenOutput, asJSON bool) {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Fprintf(w, "Type:  %s\n", out.Type)
	if out.ExpiresIn != "" {
		fmt.Fprintf(w, "TTL:   %s\n", out.ExpiresIn)
	}
	if sub, ok := out.Claims["sub"]; ok {
		fmt.Fprintf(w, "Sub:   %v\n", sub)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Token:")
	fmt.Fprintln(w, out.Token)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintf(w, "  %s\n", out.Usage["header"])
}

func parseOrGenerateUUID(input string) string {
	if input == "" {
		return uuid.NewString()
	}
	parsed, err := uuid.Parse(input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid participant id: %s\n", input)
		os.Exit(1)
	}
	return parsed.String()
}
