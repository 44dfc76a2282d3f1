// Commands managing metadata, history and monitoring.

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/spf13/cobra"

	"github.com/maruel/sfdb/internal/history"
	"github.com/maruel/sfdb/internal/statefile"
)

func (a *app) metaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Manage free-form substate attributes",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Print every attribute",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				c, err := a.open(nil)
				if err != nil {
					return err
				}
				attrs := c.Meta().Attrs
				if attrs == nil {
					attrs = map[string]any{}
				}
				return a.print(cmd, attrs)
			},
		},
		&cobra.Command{
			Use:   "get <key>",
			Short: "Print an attribute",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.open(nil)
				if err != nil {
					return err
				}
				v, ok := c.GetAttr(args[0])
				if !ok {
					return fmt.Errorf("attribute %q is not set", args[0])
				}
				return a.print(cmd, v)
			},
		},
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set an attribute; the value is parsed as JSON when possible",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.openWritable()
				if err != nil {
					return err
				}
				ok, err := c.SetAttr(args[0], parseValue(args[1]))
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%q is a protected key", args[0])
				}
				return flushDeferred(c)
			},
		},
		&cobra.Command{
			Use:   "rm <key>",
			Short: "Remove an attribute",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.openWritable()
				if err != nil {
					return err
				}
				ok, err := c.RmvAttr(args[0])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%q is a protected key", args[0])
				}
				return flushDeferred(c)
			},
		},
	)
	return cmd
}

// flushDeferred saves a container whose simul flag is off; the process is
// about to exit.
func flushDeferred(c *statefile.Container) error {
	if c.Dirty() {
		return c.Flush()
	}
	return nil
}

func (a *app) limitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "limit [n]",
		Short: "Print or set the number of units per shard",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				c, err := a.open(nil)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), c.Limit())
				return err
			}
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid limit %q: %w", args[0], err)
			}
			c, err := a.openWritable()
			if err != nil {
				return err
			}
			return c.SetLimit(n)
		},
	}
}

func (a *app) simulCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "simul [on|off]",
		Short: "Print or set whether each change is persisted immediately",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				c, err := a.open(nil)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), c.Simul())
				return err
			}
			var on bool
			switch strings.ToLower(args[0]) {
			case "on":
				on = true
			case "off":
			default:
				var err error
				if on, err = strconv.ParseBool(args[0]); err != nil {
					return fmt.Errorf("invalid simul value %q", args[0])
				}
			}
			c, err := a.openWritable()
			if err != nil {
				return err
			}
			return c.SetSimul(on)
		},
	}
}

func (a *app) logCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "log",
		Short: "List the saves recorded with --history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			repo, err := history.Open(a.dataDir(), "", "")
			if err != nil {
				return err
			}
			all, err := repo.Log(cmd.Context(), "", 0)
			if err != nil {
				return err
			}
			prefix := "sfdb: save " + a.v.GetString("substate") + " "
			commits := []*history.Commit{}
			for _, c := range all {
				if strings.HasPrefix(c.Message, prefix) {
					commits = append(commits, c)
					if n > 0 && len(commits) == n {
						break
					}
				}
			}
			return a.print(cmd, commits)
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 20, "Print at most this many saves, 0 for all")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <commit> [seq]",
		Short: "Print a shard as of a recorded save, the newest shard by default",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.open(nil)
			if err != nil {
				return err
			}
			p := c.Newest().Path
			if len(args) == 2 {
				seq, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid shard number %q: %w", args[1], err)
				}
				p = c.ShardPath(seq)
			}
			repo, err := history.Open(a.dataDir(), "", "")
			if err != nil {
				return err
			}
			data, err := repo.FileAt(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print shard changes made by other writers until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(nil)
			if err != nil {
				return err
			}
			ch, err := c.Watch(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for ev := range ch {
				if _, err := fmt.Fprintf(out, "%s %s\n", ev.Op, filepath.Base(ev.Path)); err != nil {
					return err
				}
				if ev.Op != statefile.OpCreated {
					continue
				}
				if _, err := c.Refresh(); err != nil {
					slog.WarnContext(cmd.Context(), "Failed to refresh", "substate", c.Substate(), "err", err)
				}
			}
			return cmd.Context().Err()
		},
	}
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Load every shard and print the engine counters in Prometheus format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(nil)
			if err != nil {
				return err
			}
			if _, err := c.Count(); err != nil {
				return err
			}
			metrics.WritePrometheus(cmd.OutOrStdout(), false)
			return nil
		},
	}
}
