// Commands reading and writing units and the schema.

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"strconv"

	"github.com/maruel/ksid"
	"github.com/spf13/cobra"

	"github.com/maruel/sfdb/internal/schema"
	"github.com/maruel/sfdb/internal/statefile"
)

type info struct {
	Substate  string         `json:"substate"`
	Dir       string         `json:"dir"`
	Shards    []int          `json:"shards"`
	Crack     int            `json:"crack"`
	Units     int            `json:"units"`
	Limit     int            `json:"limit"`
	Simul     bool           `json:"simul"`
	Sealed    bool           `json:"sealed"`
	Protected bool           `json:"protected"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

func (a *app) printInfo(cmd *cobra.Command, c *statefile.Container) error {
	n, err := c.Count()
	if err != nil {
		return err
	}
	m := c.Meta()
	out := info{
		Substate:  c.Substate(),
		Dir:       c.Dir(),
		Crack:     m.Crack,
		Units:     n,
		Limit:     c.Limit(),
		Simul:     c.Simul(),
		Sealed:    m.Sealed(),
		Protected: c.Passkey() != "",
		Attrs:     m.Attrs,
	}
	for _, s := range c.Shards() {
		out.Shards = append(out.Shards, s.Seq)
	}
	return a.print(cmd, out)
}

func (a *app) initCmd() *cobra.Command {
	var limit int
	var deferred, genPasskey bool
	var passkey string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the substate or update its settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(&statefile.Options{Deferred: deferred})
			if err != nil {
				return err
			}
			if genPasskey {
				passkey = ksid.NewID().String()
			}
			simulChanged := cmd.Flags().Changed("deferred") && c.Simul() == deferred
			if passkey != "" || limit > 0 || simulChanged {
				if err := a.authorize(c); err != nil {
					return err
				}
			}
			if passkey != "" {
				if err := c.SetPasskey(passkey); err != nil {
					return err
				}
				if genPasskey {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "passkey: %s\n", passkey)
				}
			}
			if limit > 0 {
				if err := c.SetLimit(limit); err != nil {
					return err
				}
			}
			if simulChanged {
				if err := c.SetSimul(!deferred); err != nil {
					return err
				}
			}
			return a.printInfo(cmd, c)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Units per shard before rollover")
	cmd.Flags().BoolVar(&deferred, "deferred", false, "Do not persist each change immediately")
	cmd.Flags().StringVar(&passkey, "set-passkey", "", "Protect the substate with a passkey")
	cmd.Flags().BoolVar(&genPasskey, "gen-passkey", false, "Protect the substate with a generated passkey, printed on stderr")
	return cmd
}

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the substate metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(nil)
			if err != nil {
				return err
			}
			return a.printInfo(cmd, c)
		},
	}
}

func (a *app) schemaCmd() *cobra.Command {
	var asJSONSchema bool
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the unit schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(nil)
			if err != nil {
				return err
			}
			if asJSONSchema {
				return a.print(cmd, schema.ToJSONSchema(c.UnitType()))
			}
			return a.print(cmd, c.UnitType())
		},
	}
	cmd.Flags().BoolVar(&asJSONSchema, "json-schema", false, "Print as a JSON Schema document")
	return cmd
}

func (a *app) extendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extend <schema|@file|->",
		Short: "Merge fields into the unit schema and upgrade every stored unit",
		Example: `  sfdb extend '{"name":"string","tags":[{"label":"string"}]}'
  sfdb extend @person.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readArg(cmd, args[0])
			if err != nil {
				return err
			}
			ext, err := schema.Parse(data)
			if err != nil {
				return err
			}
			c, err := a.openWritable()
			if err != nil {
				return err
			}
			if err := c.ExtendUnitType(ext); err != nil {
				return err
			}
			return a.print(cmd, c.UnitType())
		},
	}
}

func (a *app) pushCmd() *cobra.Command {
	var idField string
	cmd := &cobra.Command{
		Use:   "push <unit|@file|->...",
		Short: "Append units",
		Long: `Append units. Each argument is a JSON object, an array of objects, or a
stream of them. Fields missing from the schema are dropped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var units []schema.Unit
			for _, arg := range args {
				data, err := readArg(cmd, arg)
				if err != nil {
					return err
				}
				u, err := decodeUnits(data)
				if err != nil {
					return err
				}
				units = append(units, u...)
			}
			c, err := a.openWritable()
			if err != nil {
				return err
			}
			if idField != "" {
				if _, ok := c.UnitType()[idField]; !ok {
					if err := c.ExtendUnitType(schema.Schema{idField: schema.Prim(schema.String)}); err != nil {
						return err
					}
				}
				for _, u := range units {
					u[idField] = ksid.NewID().String()
				}
			}
			if err := c.Push(units...); err != nil {
				return err
			}
			if err := flushDeferred(c); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "pushed %d unit(s)\n", len(units))
			return err
		},
	}
	cmd.Flags().StringVar(&idField, "id-field", "", "Stamp each unit with a fresh sortable ID in this field")
	return cmd
}

// decodeUnits reads a stream of JSON objects or arrays of objects.
func decodeUnits(data []byte) ([]schema.Unit, error) {
	d := json.NewDecoder(bytes.NewReader(data))
	var out []schema.Unit
	for {
		var v any
		if err := d.Decode(&v); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("failed to decode unit: %w", err)
		}
		switch x := v.(type) {
		case map[string]any:
			out = append(out, x)
		case []any:
			for _, e := range x {
				m, ok := e.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("unit must be an object, got %T", e)
				}
				out = append(out, m)
			}
		default:
			return nil, fmt.Errorf("unit must be an object, got %T", v)
		}
	}
}

func (a *app) dumpCmd() *cobra.Command {
	var offset, limit int
	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Print every unit, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(nil)
			if err != nil {
				return err
			}
			units, err := c.Find(nil)
			if err != nil {
				return err
			}
			units = units[min(max(offset, 0), len(units)):]
			if limit > 0 && limit < len(units) {
				units = units[:limit]
			}
			if units == nil {
				units = []schema.Unit{}
			}
			return a.print(cmd, units)
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many units")
	cmd.Flags().IntVarP(&limit, "count", "n", 0, "Print at most this many units")
	return cmd
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q: %w", s, err)
	}
	return i, nil
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <index>",
		Short: "Print the unit at a global index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			c, err := a.open(nil)
			if err != nil {
				return err
			}
			u, err := c.At(i)
			if err != nil {
				return err
			}
			return a.print(cmd, u)
		},
	}
}

func (a *app) updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <index> <patch|@file|->",
		Short: "Merge a JSON object into the unit at a global index",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			data, err := readArg(cmd, args[1])
			if err != nil {
				return err
			}
			var patch map[string]any
			if err := json.Unmarshal(data, &patch); err != nil {
				return fmt.Errorf("invalid patch: %w", err)
			}
			c, err := a.openWritable()
			if err != nil {
				return err
			}
			if err := c.Update(i, func(u schema.Unit) { maps.Copy(u, patch) }); err != nil {
				return err
			}
			if err := flushDeferred(c); err != nil {
				return err
			}
			u, err := c.At(i)
			if err != nil {
				return err
			}
			return a.print(cmd, u)
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <index>",
		Short: "Remove the unit at a global index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			i, err := parseIndex(args[0])
			if err != nil {
				return err
			}
			c, err := a.openWritable()
			if err != nil {
				return err
			}
			if err := c.Remove(i); err != nil {
				return err
			}
			return flushDeferred(c)
		},
	}
}
