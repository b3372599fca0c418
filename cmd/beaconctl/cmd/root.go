package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/beaconhq/beacon/internal/config"
	"github.com/beaconhq/beacon/internal/delivery"
	"github.com/beaconhq/beacon/internal/event"
	"github.com/beaconhq/beacon/internal/identity"
	"github.com/beaconhq/beacon/internal/schema"
	"github.com/beaconhq/beacon/internal/store"
)

var (
	cfgFile       string
	collectorURL  string
	measurementID string
	apiSecret     string
	timeout       time.Duration
	outputJSON    bool
	clientID      string
	sessionID     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "beaconctl",
	Short: "Beacon CLI - Send and validate telemetry events",
	Long: `Beacon CLI (beaconctl) drives the beacon telemetry pipeline from the
command line.

You can use it to send events to the collector, validate them locally or
against the collector's debug endpoint, and inspect or drain the offline
delivery queue.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.beaconctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&collectorURL, "collector", "", "collector base URL")
	rootCmd.PersistentFlags().StringVar(&measurementID, "measurement-id", "", "measurement id sent with every request")
	rootCmd.PersistentFlags().StringVar(&apiSecret, "api-secret", "", "API secret sent with every request")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 15*time.Second, "per-attempt HTTP timeout")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&clientID, "client-id", "", "client id (defaults to the persisted identity)")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session-id", "", "session id (defaults to the persisted identity)")

	// Bind flags to viper
	viper.BindPFlag("collector", rootCmd.PersistentFlags().Lookup("collector"))
	viper.BindPFlag("measurement-id", rootCmd.PersistentFlags().Lookup("measurement-id"))
	viper.BindPFlag("api-secret", rootCmd.PersistentFlags().Lookup("api-secret"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".beaconctl")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// Override global variables with config values if flags weren't explicitly set
	if !rootCmd.PersistentFlags().Changed("collector") {
		if s := viper.GetString("collector"); s != "" {
			collectorURL = s
		}
	}
	if !rootCmd.PersistentFlags().Changed("measurement-id") {
		if s := viper.GetString("measurement-id"); s != "" {
			measurementID = s
		}
	}
	if !rootCmd.PersistentFlags().Changed("api-secret") {
		if s := viper.GetString("api-secret"); s != "" {
			apiSecret = s
		}
	}
	if !rootCmd.PersistentFlags().Changed("timeout") {
		if d := viper.GetDuration("timeout"); d > 0 {
			timeout = d
		}
	}
	if !rootCmd.PersistentFlags().Changed("json") {
		outputJSON = viper.GetBool("json")
	}
}

// buildConfig merges environment configuration with CLI flag overrides.
func buildConfig() config.Config {
	cfg := config.FromEnv()
	if collectorURL != "" {
		cfg.Collector.BaseURL = collectorURL
	}
	if measurementID != "" {
		cfg.Collector.MeasurementID = measurementID
	}
	if apiSecret != "" {
		cfg.Collector.APISecret = apiSecret
	}
	cfg.Collector.Timeout = timeout
	if cfg.IdentityStatePath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.IdentityStatePath = home + "/.beacon/identity.json"
		}
	}
	if cfg.Queue.SpoolPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Queue.SpoolPath = home + "/.beacon/queue.json"
		}
	}
	return cfg
}

// newService wires a delivery service for CLI use: spooled queue and optional
// schema registry. A Postgres DSN takes precedence over the file spool.
func newService(cfg config.Config) (*delivery.Service, error) {
	var spool store.Store = store.NewFileStore(cfg.Queue.SpoolPath)
	if cfg.Queue.PostgresDSN != "" {
		pg, err := store.NewPostgresStore(context.Background(), cfg.Queue.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("connect queue spool: %w", err)
		}
		spool = pg
	}
	opts := []delivery.Option{
		delivery.WithStore(spool),
	}
	if cfg.SchemaRulesPath != "" {
		reg, err := schema.Load(cfg.SchemaRulesPath)
		if err != nil {
			return nil, fmt.Errorf("load schema rules: %w", err)
		}
		opts = append(opts, delivery.WithRegistry(reg))
	}
	return delivery.New(cfg, opts...), nil
}

// resolveIdentity returns the identity from flags, falling back to the
// persisted file identity.
func resolveIdentity(cfg config.Config, cmd *cobra.Command) (*event.Identity, error) {
	if clientID != "" || sessionID != "" {
		return &event.Identity{ClientID: clientID, SessionID: sessionID}, nil
	}
	provider := identity.NewFileProvider(cfg.IdentityStatePath)
	id, err := provider.Identity(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	return &id, nil
}

// parseParams converts repeated key=value flags into an event params map.
// Values stay strings; the collector coerces types server-side.
func parseParams(kvs []string) (map[string]any, error) {
	params := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid param %q, expected key=value", kv)
		}
		params[k] = v
	}
	return params, nil
}

// printOutput prints the response in the requested format
func printOutput(v any) {
	if outputJSON {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error marshaling to JSON: %v\n", err)
			return
		}
		fmt.Println(string(data))
		return
	}
	fmt.Printf("%+v\n", v)
}
