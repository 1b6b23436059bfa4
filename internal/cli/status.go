package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/relistr/relistr/internal/config"
	"github.com/relistr/relistr/internal/crypto"
	"github.com/relistr/relistr/internal/logging"
	"github.com/relistr/relistr/internal/models"
	"github.com/relistr/relistr/internal/service"
	"github.com/relistr/relistr/internal/store"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"credentials"},
	Short:   "Show marketplace connection status",
	Long: `Show the connection status of every marketplace for the local user.

Example:
  relistr status --db ./data/relistr.db`,
	RunE: runStatus,
}

var statusFlags struct {
	User string
}

func init() {
	statusCmd.Flags().StringVar(&statusFlags.User, "user", "", "External user ID to inspect (defaults to the local CLI user)")

	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	logger := logging.NewLogger(logging.WithService("relistr-cli"))
	loader := config.NewLoader(globalFlags.Config, logger)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if globalFlags.DBPath != "" {
		cfg.Database.Path = globalFlags.DBPath
	}

	st, err := buildStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	cipher, err := crypto.NewCipher(cfg.Encryption.MasterKey)
	if err != nil {
		return fmt.Errorf("failed to initialize credential cipher: %w", err)
	}
	credentials := service.NewCredentialService(st, cipher, logger)

	ctx := context.Background()

	externalID := statusFlags.User
	if externalID == "" {
		externalID = cliUserExternalID
	}
	user, err := st.GetUserByExternalID(ctx, externalID)
	if errors.Is(err, store.ErrNotFound) {
		// No user yet means nothing has been connected.
		return printStatuses(disconnectedStatuses())
	}
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}

	statuses, err := credentials.ListStatuses(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to list connections: %w", err)
	}
	return printStatuses(statuses)
}

func disconnectedStatuses() []models.ConnectionStatus {
	all := models.AllMarketplaces()
	statuses := make([]models.ConnectionStatus, 0, len(all))
	for _, m := range all {
		statuses = append(statuses, models.ConnectionStatus{Marketplace: m})
	}
	return statuses
}

func printStatuses(statuses []models.ConnectionStatus) error {
	if globalFlags.JSON {
		out, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "MARKETPLACE\tCONNECTED\tLAST VERIFIED")
	for _, s := range statuses {
		verified := "-"
		if s.LastVerified != nil {
			verified = s.LastVerified.Local().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%t\t%s\n", s.Marketplace.Info().DisplayName, s.IsConnected, verified)
	}
	return w.Flush()
}
