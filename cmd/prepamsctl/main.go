package main

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/prepams/prepams/internal/engine"
	"github.com/prepams/prepams/pkg/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL string
	cfgFile   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "prepamsctl",
	Short: "PrePaMS reward service CLI",
	Long: `prepamsctl is the operator command-line interface for the PrePaMS
reward service.

It generates issuer secrets, inspects the ledger and study registry,
and checks service health.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.prepams")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.prepams/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "reward service URL (default http://localhost:8080)")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(studiesCmd)
	rootCmd.AddCommand(rewardsCmd)
	rootCmd.AddCommand(versionCmd)
}

// ── keygen ───────────────────────────────────────────────────────────────────

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new issuer secret",
	Long: `Keygen generates a fresh 32-byte issuer secret and prints it hex-encoded.

The secret deterministically derives all issuer key material, so the same
secret must be configured (issuer.secret / ISSUER_SECRET) on every boot of
the same deployment. Losing it makes the existing ledger unreadable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, err := engine.GenerateSecret()
		if err != nil {
			return err
		}
		fmt.Println(hex.EncodeToString(secret))
		return nil
	},
}

// ── status ───────────────────────────────────────────────────────────────────

var statusFormat string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service health and ledger summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.New(serverURL)
		if err != nil {
			return err
		}
		ctx := context.Background()

		health, err := c.Health(ctx)
		if err != nil {
			return fmt.Errorf("health check: %w", err)
		}

		ledger, err := c.Ledger(ctx)
		if err != nil {
			return fmt.Errorf("fetch ledger: %w", err)
		}

		rewards, payouts, total := 0, 0, 0
		for _, e := range ledger.Entries {
			if e.Participation == nil {
				payouts++
				total -= e.Value
			} else {
				rewards++
				total += e.Value
			}
		}

		if statusFormat == "json" {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"status":      health,
				"head":        base64.StdEncoding.EncodeToString(ledger.Head),
				"entries":     len(ledger.Entries),
				"rewards":     rewards,
				"payouts":     payouts,
				"outstanding": total,
			})
		}

		fmt.Printf("server:       %s\n", serverURL)
		fmt.Printf("status:       %s\n", health)
		fmt.Printf("ledger head:  %s\n", base64.StdEncoding.EncodeToString(ledger.Head))
		fmt.Printf("entries:      %d (%d rewards, %d payouts)\n", len(ledger.Entries), rewards, payouts)
		fmt.Printf("outstanding:  %d credits\n", total)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusFormat, "format", "text", "Output format: text or json")
}

// ── studies ──────────────────────────────────────────────────────────────────

var studiesOwner string

var studiesCmd = &cobra.Command{
	Use:   "studies",
	Short: "List published studies",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.New(serverURL)
		if err != nil {
			return err
		}

		studies, err := c.Studies(context.Background(), studiesOwner)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tOWNER\tREWARD\tWEB")
		for _, s := range studies {
			web := ""
			if s.WebBased {
				web = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", s.ID, s.Name, s.Owner, s.Reward, web)
		}
		return w.Flush()
	},
}

func init() {
	studiesCmd.Flags().StringVar(&studiesOwner, "owner", "", "Filter by owner id")
}

// ── rewards ──────────────────────────────────────────────────────────────────

var rewardsCmd = &cobra.Command{
	Use:   "rewards [study-id]",
	Short: "List the public transaction log, optionally for one study",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := client.New(serverURL)
		if err != nil {
			return err
		}

		study := ""
		if len(args) == 1 {
			study = args[0]
		}

		txs, err := c.Transactions(context.Background(), study)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TAG\tSTUDY\tVALUE")
		for _, tx := range txs {
			study := "-"
			if tx.Study != nil {
				study = *tx.Study
			}
			fmt.Fprintf(w, "%s\t%s\t%d\n", tx.Tag, study, tx.Value)
		}
		return w.Flush()
	},
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the prepamsctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("prepamsctl", version)
	},
}
