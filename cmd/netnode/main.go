package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/voxanet/netnode/pkg/api"
	"github.com/voxanet/netnode/pkg/config"
	"github.com/voxanet/netnode/pkg/crypto"
	"github.com/voxanet/netnode/pkg/log"
	"github.com/voxanet/netnode/pkg/manager"
	"github.com/voxanet/netnode/pkg/store"
)

var (
	// Version information (set via ldflags during build)
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
	Use:   "netnode",
	Short: "Voxa network node - onion-routed overlay relay",
	Long: `netnode is a node in the Voxa decentralized overlay network.

It registers with the directory, speaks the SSU datagram protocol with
its peers, relays onion-encrypted traffic, floods overlay records, and
serves a local admin API.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"netnode version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("config", "", "Path to the YAML configuration file")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (overrides storage.data_dir from the config file)")

	cobra.OnInitialize(func() {
		level, _ := rootCmd.PersistentFlags().GetString("log-level")
		jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
		log.Init(log.Config{Level: level, JSONOutput: jsonOut})
	})

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(versionCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the node and serve until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		mgr, err := manager.New(cfg)
		if err != nil {
			return fmt.Errorf("failed to assemble node: %w", err)
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start node: %w", err)
		}

		server := api.NewServer(mgr, cfg.API.ListenAddr, cfg.Dev.Debug)
		apiErr := make(chan error, 1)
		go func() {
			apiErr <- server.Start()
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			log.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
		case err := <-apiErr:
			if err != nil {
				log.Logger.Error().Err(err).Msg("admin API failed")
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Stop(shutdownCtx); err != nil {
			log.Logger.Error().Err(err).Msg("error stopping admin API")
		}
		return mgr.Stop()
	},
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate and store the node's key material",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ristore, err := store.NewRIStore(
			cfg.Storage.DataDir,
			cfg.Storage.SubDir("nri"),
			cfg.Storage.SubDir("rri"),
			cfg.Storage.SubDir("local"),
		)
		if err != nil {
			return err
		}

		kp, err := crypto.GenerateKeypair()
		if err != nil {
			return err
		}
		if err := ristore.SaveKeyFile("rsa", kp.PrivateKey); err != nil {
			return err
		}
		if err := ristore.SaveKeyFile("rsa_pub", kp.PublicKey); err != nil {
			return err
		}

		sessionKey, err := crypto.GenerateSessionKey()
		if err != nil {
			return err
		}
		if err := ristore.SaveKeyFile("fernet", sessionKey); err != nil {
			return err
		}

		fmt.Printf("Key material written to %s\n", cfg.Storage.DataDir)
		fmt.Printf("Key ID:          %s\n", kp.KeyID)
		fmt.Printf("Public key hash: %s\n", kp.PublicKeyHash)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("netnode version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// The flag wins over the file
	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	return cfg, nil
}
