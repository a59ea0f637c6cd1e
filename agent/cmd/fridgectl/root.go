package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fridgekeep/fridgekeep/agent/internal/client"
)

const envPrefix = "FRIDGECTL"

// cli carries the settings shared by every subcommand.
type cli struct {
	v *viper.Viper
}

// NewRootCommand builds the fridgectl command tree. Every persistent flag can
// also be set through a FRIDGECTL_* environment variable, e.g.
// FRIDGECTL_SERVER or FRIDGECTL_API_KEY.
func NewRootCommand() *cobra.Command {
	c := &cli{v: viper.New()}

	root := &cobra.Command{
		Use:          "fridgectl",
		Short:        "Inspect and manage a fridgekeep-server",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("server", "http://localhost:8080", "fridgekeep-server HTTP base URL")
	pf.String("grpc-addr", "localhost:50051", "fridgekeep-server gRPC address (health)")
	pf.String("api-key", "", "API key sent to the server")
	pf.String("api-key-header", "x-api-key", "header carrying the API key")
	pf.Duration("timeout", 10*time.Second, "per-command timeout")

	c.v.SetEnvPrefix(envPrefix)
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()
	_ = c.v.BindPFlags(pf)

	root.AddCommand(
		newRegisterCommand(c),
		newGetCommand(c),
		newListCommand(c),
		newDeleteCommand(c),
		newEvictCommand(c),
		newActivityCommand(c),
		newStatsCommand(c),
		newHealthCommand(c),
	)
	return root
}

func (c *cli) server() string       { return c.v.GetString("server") }
func (c *cli) grpcAddr() string     { return c.v.GetString("grpc-addr") }
func (c *cli) apiKey() string       { return c.v.GetString("api-key") }
func (c *cli) apiKeyHeader() string { return c.v.GetString("api-key-header") }
func (c *cli) timeout() time.Duration {
	if d := c.v.GetDuration("timeout"); d > 0 {
		return d
	}
	return 10 * time.Second
}

func (c *cli) client() (*client.Client, error) {
	return client.New(c.server(), client.WithAPIKey(c.apiKeyHeader(), c.apiKey()))
}

// printJSON writes v to w as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
