package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Read a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, p, err := c.connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := commandContext(cmd, p)
			defer cancel()

			value, found, err := client.GetString(ctx, args[0])
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintln(cmd.OutOrStdout(), "(nil)")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}

func (c *cli) setCmd() *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, p, err := c.connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := commandContext(cmd, p)
			defer cancel()

			if err := client.SetString(ctx, args[0], args[1], ttl); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "expiry, 0 for none")
	return cmd
}

func (c *cli) pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check every server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, p, err := c.connect(cmd)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := commandContext(cmd, p)
			defer cancel()

			if err := client.Ping(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "PONG")
			return nil
		},
	}
}
