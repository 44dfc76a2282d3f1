package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maruel/sfdb/internal/codec"
	"github.com/maruel/sfdb/internal/fsys"
	"github.com/maruel/sfdb/internal/history"
	"github.com/maruel/sfdb/internal/statefile"
)

var (
	errSealed       = errors.New("substate is sealed")
	errWrongPasskey = errors.New("wrong passkey")
)

// app holds the configuration shared by the commands.
type app struct {
	v *viper.Viper
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:   "sfdb",
		Short: "Inspect and edit state file containers",
		Long: `sfdb manages substates: homogeneous collections of data units stored as
numbered shard files (sf.<n>.<substate>.<ext>) under a data directory.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.configure,
	}
	f := root.PersistentFlags()
	f.String("data-dir", "./data", "Data directory")
	f.StringP("substate", "s", "default", "Substate to operate on")
	f.String("format", "json", "Shard and output format (json, yaml)")
	f.String("log-level", "warn", "Log level (debug, info, warn, error)")
	f.Bool("history", false, "Commit every save to a git repository in the data directory")
	f.String("passkey", "", "Passkey required to modify a protected substate")
	f.Duration("batch-interval", 0, "With simul off, save at most once per interval; the rest is flushed on exit")

	root.AddCommand(
		a.initCmd(),
		a.infoCmd(),
		a.schemaCmd(),
		a.extendCmd(),
		a.pushCmd(),
		a.dumpCmd(),
		a.getCmd(),
		a.updateCmd(),
		a.rmCmd(),
		a.metaCmd(),
		a.limitCmd(),
		a.simulCmd(),
		a.logCmd(),
		a.showCmd(),
		a.watchCmd(),
		a.statsCmd(),
	)
	return root
}

// configure loads the environment and the optional config file, binds the
// flags and sets up logging.
func (a *app) configure(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")
	a.v.SetEnvPrefix("sfdb")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	a.v.SetConfigName("sfdb")
	a.v.SetConfigType("yaml")
	a.v.AddConfigPath(".")
	a.v.AddConfigPath(a.v.GetString("data-dir"))
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return initLogging(a.v.GetString("log-level"))
}

func (a *app) dataDir() string {
	return a.v.GetString("data-dir")
}

func (a *app) codec() (codec.Codec, error) {
	return codec.ByName(a.v.GetString("format"))
}

// open opens the configured substate, creating it when needed.
func (a *app) open(opts *statefile.Options) (*statefile.Container, error) {
	var o statefile.Options
	if opts != nil {
		o = *opts
	}
	cd, err := a.codec()
	if err != nil {
		return nil, err
	}
	o.Codec = cd
	if a.v.GetBool("history") {
		repo, err := history.Open(a.dataDir(), "", "")
		if err != nil {
			return nil, err
		}
		o.Saver = &statefile.FileSaver{History: repo}
	}
	if d := a.v.GetDuration("batch-interval"); d > 0 {
		o.Saver = statefile.NewBatchSaver(o.Saver, d, 1)
	}
	return statefile.New(fsys.NewDisk(), a.dataDir(), a.v.GetString("substate"), &o)
}

// openWritable opens the substate and checks that it may be modified.
func (a *app) openWritable() (*statefile.Container, error) {
	c, err := a.open(nil)
	if err != nil {
		return nil, err
	}
	if err := a.authorize(c); err != nil {
		return nil, err
	}
	if c.Meta().Sealed() {
		return nil, fmt.Errorf("%w: %s", errSealed, c.Substate())
	}
	return c, nil
}

func (a *app) authorize(c *statefile.Container) error {
	if !c.CheckPasskey(a.v.GetString("passkey")) {
		return fmt.Errorf("%w for %s", errWrongPasskey, c.Substate())
	}
	return nil
}

// print writes v to the command output in the configured format.
func (a *app) print(cmd *cobra.Command, v any) error {
	cd, err := a.codec()
	if err != nil {
		return err
	}
	data, err := cd.Marshal(v)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// parseValue decodes a JSON argument, falling back to the raw string so that
// `meta set owner ops` works without quoting.
func parseValue(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	return v
}

// readArg returns the argument, or the content of the file it names when it
// starts with '@', or stdin for "-".
func readArg(cmd *cobra.Command, arg string) ([]byte, error) {
	switch {
	case arg == "-":
		return io.ReadAll(cmd.InOrStdin())
	case strings.HasPrefix(arg, "@"):
		return os.ReadFile(arg[1:])
	default:
		return []byte(arg), nil
	}
}
