package cli

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"autorouter/internal/adapter/remote"
)

var healthRemote string

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that a hosted autorouter service is up",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		baseURL := cfg.Remote.BaseURL
		if healthRemote != "" {
			baseURL = healthRemote
		}
		if baseURL == "" {
			return fmt.Errorf("no service URL: set remote.base_url or use --remote")
		}

		client := remote.NewClient(baseURL, lookupEnv(cfg.Remote.APIKeyEnv), &http.Client{Timeout: cfg.Remote.Timeout()})
		if !client.HealthCheck(cmd.Context()) {
			return fmt.Errorf("%s is unhealthy", baseURL)
		}
		fmt.Printf("%s is healthy\n", baseURL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
	healthCmd.Flags().StringVar(&healthRemote, "remote", "", "base URL of the service (default from config)")
}

func lookupEnv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
