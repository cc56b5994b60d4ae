package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/cronfleet/pkg/amount"
	"github.com/cuemby/cronfleet/pkg/api"
	"github.com/cuemby/cronfleet/pkg/engine"
	"github.com/cuemby/cronfleet/pkg/events"
	"github.com/cuemby/cronfleet/pkg/host"
	"github.com/cuemby/cronfleet/pkg/log"
	"github.com/cuemby/cronfleet/pkg/metrics"
	"github.com/cuemby/cronfleet/pkg/storage"
	"github.com/cuemby/cronfleet/pkg/types"
)

// Version information, set via ldflags during build.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "cronfleetd",
	Short:   "cronfleetd - a decentralized-cron-style task scheduler",
	Long:    `cronfleetd schedules recurring and one-shot calls across a pool of incentivized dispatching agents.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("cronfleetd version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("api-addr", "127.0.0.1:8080", "Address of a running cronfleetd for client subcommands")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(configCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(logLevel), JSONOutput: logJSON})
}

// --- serve ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduler daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		listenAddr, _ := cmd.Flags().GetString("listen-addr")
		self, _ := cmd.Flags().GetString("self")
		owner, _ := cmd.Flags().GetString("owner")
		concurrency, _ := cmd.Flags().GetInt("dispatch-concurrency")
		configPath, _ := cmd.Flags().GetString("config")

		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		outbound := host.NewOutboundCaller(host.NewHTTPInvoker(nil), concurrency)
		transfer := host.NewLogTransfer("payouts")

		eng, err := engine.New(store, host.SystemClock{}, outbound, transfer, types.Principal(self))
		if err != nil {
			return fmt.Errorf("build engine: %w", err)
		}
		bootstrapSettings := defaultSettings()
		if configPath != "" {
			sf, err := loadSettingsFile(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := sf.applyTo(&bootstrapSettings); err != nil {
				return fmt.Errorf("apply config: %w", err)
			}
		}
		if err := eng.Bootstrap(types.Principal(owner), bootstrapSettings); err != nil {
			return fmt.Errorf("bootstrap settings: %w", err)
		}

		bus := events.NewBroker()
		bus.Start()
		defer bus.Stop()
		eng.SetEventBroker(bus)

		collector := metrics.NewCollector(eng)
		collector.Start()
		defer collector.Stop()

		metrics.SetVersion(Version)
		metrics.RegisterComponent("storage", true, "ready")
		metrics.RegisterComponent("engine", true, "ready")
		metrics.RegisterComponent("api", false, "initializing")

		srv := api.NewServer(eng, listenAddr)
		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil {
				errCh <- err
			}
		}()
		time.Sleep(100 * time.Millisecond)
		metrics.RegisterComponent("api", true, "ready")
		fmt.Printf("cronfleetd listening on %s\n", listenAddr)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigCh:
			fmt.Println("shutting down...")
		case err := <-errCh:
			return fmt.Errorf("api server: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	},
}

func defaultSettings() types.Settings {
	return types.Settings{
		SlotGranularityNs: 60_000_000_000,
		GasPrice:          amount.FromUint64(1),
		AgentFee:          amount.FromUint64(1),
		ProxyCallbackGas:  5_000_000,
		MaxGas:            300_000_000_000,
		RatioAgents:       1,
		RatioTasks:        1,
		EvictionThreshold: 10,
		StorageQuota:      amount.FromUint64(1_000_000),
	}
}

func init() {
	serveCmd.Flags().String("data-dir", "./cronfleet-data", "Directory for the bbolt data file")
	serveCmd.Flags().String("listen-addr", "127.0.0.1:8080", "HTTP listen address")
	serveCmd.Flags().String("self", "cronfleetd", "This scheduler instance's own principal (rejects self-targeting tasks)")
	serveCmd.Flags().String("owner", "owner", "Owner principal allowed to call update_settings")
	serveCmd.Flags().Int("dispatch-concurrency", 8, "Maximum concurrent outbound dispatch callbacks")
	serveCmd.Flags().String("config", "", "Optional YAML file with bootstrap settings overrides")
}

// --- HTTP client helper for the remaining subcommands ---

func apiRequest(cmd *cobra.Command, method, path, caller string, body interface{}, out interface{}) error {
	addr, _ := cmd.Flags().GetString("api-addr")
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, "http://"+addr+path, reqBody)
	if err != nil {
		return err
	}
	if caller != "" {
		req.Header.Set("X-Cronfleet-Caller", caller)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return fmt.Errorf("%s", errBody.Error)
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func printJSON(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
