package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fridgekeep/fridgekeep/agent/internal/scraper"
	"github.com/fridgekeep/fridgekeep/pkg/types"
)

func newRegisterCommand(c *cli) *cobra.Command {
	var req types.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a captured resource",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if req.ID == "" {
				req.ID = uuid.NewString()
			}
			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout())
			defer cancel()
			res, err := cl.Register(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&req.ID, "id", "", "resource id (default: random uuid)")
	cmd.Flags().StringVar(&req.OwnerID, "owner", "", "owner id")
	cmd.Flags().StringVar(&req.Location, "location", "", "path or URI of the captured file")
	return cmd
}

func newGetCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout())
			defer cancel()
			res, err := cl.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newListCommand(c *cli) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked resources, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout())
			defer cancel()
			list, err := cl.List(ctx, owner)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "only list resources of this owner")
	return cmd
}

func newActivityCommand(c *cli) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent store events, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout())
			defer cancel()
			list, err := cl.Activity(ctx, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), list)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of events")
	return cmd
}

func newDeleteCommand(c *cli) *cobra.Command {
	var purge bool
	cmd := &cobra.Command{
		Use:   "delete ID...",
		Short: "Forget resources (and with --purge remove their files)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout())
			defer cancel()
			for _, id := range args {
				if err := cl.Delete(ctx, id, purge); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&purge, "purge", false, "also remove the underlying file")
	return cmd
}

func newEvictCommand(c *cli) *cobra.Command {
	var hours float64
	cmd := &cobra.Command{
		Use:   "evict",
		Short: "Evict resources older than --max-age-hours",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var maxAge *float64
			if cmd.Flags().Changed("max-age-hours") {
				maxAge = &hours
			}
			cl, err := c.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout())
			defer cancel()
			resp, err := cl.Evict(ctx, maxAge)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().Float64Var(&hours, "max-age-hours", 24, "age threshold in hours (server default when omitted)")
	return cmd
}

func newStatsCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise the server's store and sweep metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout())
			defer cancel()
			st, err := scraper.New(c.server(), c.apiKeyHeader(), c.apiKey()).Scrape(ctx)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "live:          %.0f\n", st.Live)
			fmt.Fprintf(w, "registered:    %.0f\n", st.Registered)
			reasons := make([]string, 0, len(st.Removed))
			for r := range st.Removed {
				reasons = append(reasons, r)
			}
			sort.Strings(reasons)
			for _, r := range reasons {
				fmt.Fprintf(w, "removed[%s]: %.0f\n", r, st.Removed[r])
			}
			fmt.Fprintf(w, "sweeps:        %d (%.3fs total)\n", st.Sweeps, st.SweepSeconds)
			fmt.Fprintf(w, "sweep evicted: %.0f\n", st.SweepEvicted)
			return nil
		},
	}
}
