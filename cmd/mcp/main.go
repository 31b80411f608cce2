// Command mcp serves the commission admin tools over MCP stdio.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"

	"github.com/storefront-admin/commissions/internal/mcpserver"
)

// Version is set by ldflags.
var Version = "dev"

func main() {
	_ = godotenv.Load()

	cfg := mcpserver.Config{
		APIURL:        envOrDefault("COMMISSIONS_API_URL", "http://localhost:8080"),
		AdminSecret:   os.Getenv("COMMISSIONS_ADMIN_SECRET"),
		BillingSecret: os.Getenv("COMMISSIONS_BILLING_SECRET"),
		Operator:      envOrDefault("COMMISSIONS_OPERATOR", "mcp-assistant"),
	}
	if cfg.AdminSecret == "" {
		fmt.Fprintln(os.Stderr, "COMMISSIONS_ADMIN_SECRET is required")
		os.Exit(1)
	}

	s := mcpserver.NewMCPServer(cfg, Version)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
