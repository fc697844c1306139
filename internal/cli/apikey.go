package cli

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ankittk/postcraft/internal/config"
)

const apiKeyEnv = "POSTCRAFT_API_KEY"

func newApikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage the key that protects the HTTP API",
	}
	cmd.AddCommand(newApikeyGenerateCmd())
	return cmd
}

func newApikeyGenerateCmd() *cobra.Command {
	var (
		envFile string
		save    bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create a random API key",
		Long: "Create a random API key. With --env the key is stored in a dotenv file; with --save it is written to " +
			"http.api_key in config.yaml. Otherwise it is only printed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := newAPIKey()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "API key:\n\n  %s\n\n", key)

			switch {
			case envFile != "":
				if err := storeEnvKey(envFile, key); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "Stored %s in %s. Run: postcraft serve --env-file %s\n", apiKeyEnv, envFile, envFile)
			case save:
				home := config.MustHomeFrom(cmd.Context())
				s, err := config.LoadSettings(home)
				if err != nil {
					return err
				}
				s.HTTP.APIKey = key
				if err := config.SaveSettings(home, s); err != nil {
					return fmt.Errorf("save settings: %w", err)
				}
				_, _ = fmt.Fprintf(out, "Saved to %s\n", config.SettingsPath(home))
			default:
				printKeyUsage(out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env", "", "Store "+apiKeyEnv+" in this dotenv file")
	cmd.Flags().BoolVar(&save, "save", false, "Write the key to http.api_key in config.yaml")
	cmd.MarkFlagsMutuallyExclusive("env", "save")
	return cmd
}

func newAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// storeEnvKey sets the key in a dotenv file, keeping its other entries.
func storeEnvKey(path, key string) error {
	env, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		env = map[string]string{}
	} else if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	env[apiKeyEnv] = key
	if err := godotenv.Write(env, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func printKeyUsage(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Server: export %s=<key>, or run 'postcraft apikey generate --save'.\n", apiKeyEnv)
	_, _ = fmt.Fprintln(w, "Clients: send the X-API-Key header or the api_key query parameter.")
}
