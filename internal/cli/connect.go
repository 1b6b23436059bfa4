package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/relistr/relistr/internal/automation"
	"github.com/relistr/relistr/internal/config"
	"github.com/relistr/relistr/internal/crypto"
	"github.com/relistr/relistr/internal/logging"
	"github.com/relistr/relistr/internal/models"
	"github.com/relistr/relistr/internal/service"
	"github.com/relistr/relistr/internal/store"
)

// cliUserExternalID keys the local operator account that CLI-initiated
// logins store credentials under.
const cliUserExternalID = "cli"

// connectCmd represents the connect command
var connectCmd = &cobra.Command{
	Use:   "connect <marketplace>",
	Short: "Log in to a marketplace and store credentials",
	Long: `Run a browser login against a marketplace and store the credentials
encrypted in the local database on success.

The marketplace credentials are read from --username and --password, or from
the RELISTR_MARKETPLACE_USERNAME and RELISTR_MARKETPLACE_PASSWORD environment
variables when the flags are not set.

Example:
  relistr connect poshmark --username seller@example.com --password secret`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

var connectFlags struct {
	Username string
	Password string
	Visible  bool
}

func init() {
	connectCmd.Flags().StringVar(&connectFlags.Username, "username", "", "Marketplace username or email")
	connectCmd.Flags().StringVar(&connectFlags.Password, "password", "", "Marketplace password")
	connectCmd.Flags().BoolVar(&connectFlags.Visible, "visible", false, "Run the browser with a window even if config says headless")

	RootCmd.AddCommand(connectCmd)
}

// connectReport is the JSON shape of a connect run.
type connectReport struct {
	Marketplace         string `json:"marketplace"`
	Success             bool   `json:"success"`
	Message             string `json:"message"`
	RequiresManualLogin bool   `json:"requires_manual_login,omitempty"`
	SessionVerified     bool   `json:"session_verified"`
	Throttled           bool   `json:"throttled,omitempty"`
}

func runConnect(cmd *cobra.Command, args []string) error {
	marketplace, err := models.ParseMarketplace(args[0])
	if err != nil {
		return err
	}

	username := connectFlags.Username
	if username == "" {
		username = os.Getenv("RELISTR_MARKETPLACE_USERNAME")
	}
	password := connectFlags.Password
	if password == "" {
		password = os.Getenv("RELISTR_MARKETPLACE_PASSWORD")
	}
	if username == "" || password == "" {
		return fmt.Errorf("username and password are required (flags or RELISTR_MARKETPLACE_* environment)")
	}

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

	headless := cfg.Automation.Headless && !connectFlags.Visible
	drivers := automation.NewRegistry(automation.Options{
		Logger:            logger,
		Headless:          headless,
		NavigationTimeout: cfg.Automation.NavigationTimeout,
		SelectorTimeout:   cfg.Automation.SelectorTimeout,
		OutcomeTimeout:    cfg.Automation.OutcomeTimeout,
		TypeDelayMin:      cfg.Automation.TypeDelayMin,
		TypeDelayMax:      cfg.Automation.TypeDelayMax,
		DebuggerURL:       cfg.Automation.DebuggerURL,
	})

	driver, err := drivers.Get(marketplace)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), loginDeadline(cfg))
	defer cancel()

	if globalFlags.Verbose {
		log.Printf("Logging in to %s as %s", marketplace.Info().DisplayName, username)
	}

	result, err := driver.Login(ctx, automation.Credentials{Username: username, Password: password})
	if err != nil {
		return fmt.Errorf("login to %s failed: %w", marketplace, err)
	}

	report := connectReport{
		Marketplace:         string(marketplace),
		Success:             result.Success,
		Message:             result.Message,
		RequiresManualLogin: result.RequiresManualLogin,
	}

	if result.Success && !result.RequiresManualLogin {
		report.SessionVerified, report.Throttled = verifySession(ctx, cfg, marketplace, result.Cookies, logger)

		user, err := ensureCLIUser(ctx, st)
		if err != nil {
			return fmt.Errorf("failed to prepare local user: %w", err)
		}
		if _, err := credentials.StoreCredentials(ctx, user.ID, marketplace, username, password); err != nil {
			return fmt.Errorf("failed to store credentials: %w", err)
		}
	}

	return printConnectReport(report)
}

// verifySession checks harvested cookies against the marketplace's
// authenticated probe URL. Best effort: manual flows and probe errors
// simply leave the session unverified.
func verifySession(ctx context.Context, cfg *config.Config, marketplace models.Marketplace, cookies []models.SessionCookie, logger *logging.Logger) (alive, throttled bool) {
	if len(cookies) == 0 {
		return false, false
	}
	probe := automation.NewSessionProbe(cfg.Automation.UseUTLS)
	res, err := probe.Check(ctx, marketplace, cookies)
	if err != nil {
		logger.Warn("session probe failed", "marketplace", string(marketplace), "error", err.Error())
		return false, false
	}
	return res.Alive, res.Throttle.Limited
}

// ensureCLIUser returns the local operator user, creating it on first use.
func ensureCLIUser(ctx context.Context, st store.Store) (*models.User, error) {
	user, err := st.GetUserByExternalID(ctx, cliUserExternalID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	user = &models.User{
		ID:         uuid.NewString(),
		ExternalID: cliUserExternalID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := st.PutUser(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// loginDeadline bounds a whole CLI login attempt, including manual flows
// where the operator finishes in their own browser.
func loginDeadline(cfg *config.Config) time.Duration {
	d := cfg.Automation.NavigationTimeout + 2*cfg.Automation.SelectorTimeout + cfg.Automation.OutcomeTimeout
	if d < time.Minute {
		d = time.Minute
	}
	return d + 30*time.Second
}

func printConnectReport(report connectReport) error {
	if globalFlags.JSON {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Println(report.Message)
	if report.RequiresManualLogin {
		fmt.Println("Complete the login in the opened browser window.")
		return nil
	}
	if report.Success {
		if report.SessionVerified {
			fmt.Println("Session verified against the marketplace.")
		}
		if report.Throttled {
			fmt.Println("Warning: the marketplace is currently rate limiting requests.")
		}
		fmt.Println("Credentials stored.")
	}
	return nil
}
