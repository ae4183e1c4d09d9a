package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/David-Botos/data-quality/pkg/config"
)

// APIKeyEnv is the env file entry holding the text generation API key
const APIKeyEnv = "TEXTGEN_API_KEY"

func newCredentialCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage the text generation API key",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set [key]",
		Short: "Save the API key to the env file",
		Long:  "Save the API key to the env file. Without an argument the key is read from stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				fmt.Fprint(cmd.ErrOrStderr(), "API key: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read API key: %w", err)
				}
				key = line
			}
			key = strings.TrimSpace(key)
			if key == "" {
				return errors.New("API key must not be empty")
			}

			if err := config.SaveEnvValue(a.envFile, APIKeyEnv, key); err != nil {
				return err
			}
			a.cfg.TextGen.APIKey = key
			printSuccess(cmd.OutOrStdout(), "API key saved to %s", a.envFile)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show whether an API key is configured",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if a.cfg.TextGen.APIKey == "" {
				printWarning(out, "No API key configured")
				return nil
			}
			printInfo(out, "API key: %s", redact(a.cfg.TextGen.APIKey))
			printInfo(out, "Endpoint: %s", a.cfg.TextGen.BaseURL)
			printInfo(out, "Model: %s", a.cfg.TextGen.Model)
			return nil
		},
	})

	return cmd
}

// redact keeps the first and last four characters of keys long enough to hide something
func redact(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}
