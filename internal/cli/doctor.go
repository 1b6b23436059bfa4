package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/relistr/relistr/internal/config"
	"github.com/relistr/relistr/internal/logging"
)

// doctorCmd represents the doctor command
var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose system and configuration issues",
	Long: `Perform a system diagnostic for Relistr.

This command checks:
- System information (OS, Go version, etc.)
- Configuration validity
- Database location
- Browser availability for login automation

Example:
  relistr doctor`,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

// DoctorReport represents the complete diagnostic report
type DoctorReport struct {
	Timestamp       time.Time     `json:"timestamp"`
	Checks          []DoctorCheck `json:"checks"`
	Recommendations []string      `json:"recommendations"`
}

// DoctorCheck represents a single diagnostic check
type DoctorCheck struct {
	Category    string `json:"category"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	Remediation string `json:"remediation,omitempty"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	report := DoctorReport{
		Timestamp: time.Now().UTC(),
		Checks:    []DoctorCheck{},
	}

	report.Checks = append(report.Checks, collectSystemInfo()...)
	report.Checks = append(report.Checks, checkConfiguration())
	report.Checks = append(report.Checks, checkMasterKey())
	report.Checks = append(report.Checks, checkDatabase())
	report.Checks = append(report.Checks, checkBrowser())
	report.Recommendations = generateRecommendations(report.Checks)

	return outputDoctorReport(report)
}

func collectSystemInfo() []DoctorCheck {
	return []DoctorCheck{
		{
			Category: "System",
			Name:     "Operating System",
			Status:   "OK",
			Message:  fmt.Sprintf("OS: %s (%s)", runtime.GOOS, runtime.GOARCH),
		},
		{
			Category: "System",
			Name:     "Go Version",
			Status:   "OK",
			Message:  fmt.Sprintf("Go: %s (CPUs: %d)", runtime.Version(), runtime.NumCPU()),
		},
	}
}

func checkConfiguration() DoctorCheck {
	check := DoctorCheck{
		Category: "Configuration",
		Name:     "Config File",
	}

	loader := config.NewLoader(globalFlags.Config, logging.NewLogger(logging.WithService("relistr-cli")))
	if _, err := loader.Load(); err != nil {
		check.Status = "FAIL"
		check.Message = fmt.Sprintf("Config file not found or invalid: %v", err)
		check.Remediation = "Create a valid config.yaml file or specify --config"
		return check
	}

	check.Status = "OK"
	check.Message = fmt.Sprintf("Config file loaded: %s", globalFlags.Config)
	return check
}

func checkMasterKey() DoctorCheck {
	check := DoctorCheck{
		Category: "Configuration",
		Name:     "Master Key",
	}

	if os.Getenv("RELISTR_MASTER_KEY") == "" {
		check.Status = "WARN"
		check.Message = "RELISTR_MASTER_KEY is not set in the environment"
		check.Remediation = "Export RELISTR_MASTER_KEY or set encryption.master_key in the config"
		return check
	}

	check.Status = "OK"
	check.Message = "RELISTR_MASTER_KEY is set"
	return check
}

func checkDatabase() DoctorCheck {
	check := DoctorCheck{
		Category: "Dependencies",
		Name:     "Database",
	}

	dbPath := globalFlags.DBPath
	if dbPath == "" {
		dbPath = config.Default().Database.Path
	}

	dir := filepath.Dir(dbPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		check.Status = "WARN"
		check.Message = fmt.Sprintf("Database directory does not exist: %s", dir)
		check.Remediation = "The directory will be created automatically when starting the server"
		return check
	}

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		check.Status = "OK"
		check.Message = fmt.Sprintf("Database will be created at: %s", dbPath)
		return check
	}

	check.Status = "OK"
	check.Message = fmt.Sprintf("Database found: %s", dbPath)
	return check
}

// browserBinaries are the Chrome flavors the automation layer can launch,
// in preference order.
var browserBinaries = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"chrome",
}

func checkBrowser() DoctorCheck {
	check := DoctorCheck{
		Category: "Dependencies",
		Name:     "Browser",
	}

	for _, name := range browserBinaries {
		if path, err := exec.LookPath(name); err == nil {
			check.Status = "OK"
			check.Message = fmt.Sprintf("Browser found: %s", path)
			return check
		}
	}

	check.Status = "FAIL"
	check.Message = "No Chrome or Chromium binary found in PATH"
	check.Remediation = "Install Google Chrome or Chromium; marketplace logins cannot run without it"
	return check
}

func generateRecommendations(checks []DoctorCheck) []string {
	recommendations := []string{}
	for _, c := range checks {
		if c.Status != "OK" && c.Remediation != "" {
			recommendations = append(recommendations, c.Remediation)
		}
	}
	return recommendations
}

func outputDoctorReport(report DoctorReport) error {
	if globalFlags.JSON {
		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tCHECK\tSTATUS\tMESSAGE")
	for _, c := range report.Checks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Category, c.Name, c.Status, c.Message)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(report.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, r := range report.Recommendations {
			fmt.Printf("  - %s\n", r)
		}
	}
	return nil
}
