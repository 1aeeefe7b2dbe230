package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"photo-frame-portal/internal/client"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const settingsName = ".framectl"

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "framectl",
	Short: "Drive a photo frame pair from the terminal",
	Long: `framectl signs in to the photo frame portal and acts as device A or B
of a pair: upload and delete photos, send messages and emoji pings, and
watch the shared gallery live.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLog(viper.GetString("log-level"))
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "",
		"Settings file (default $HOME/.framectl.yaml)")
	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.PersistentFlags().StringP("server", "s", "http://localhost:8080",
		"Portal server URL")
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.PersistentFlags().String("token", "",
		"Bearer token (normally saved by login)")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))

	rootCmd.PersistentFlags().StringP("log-level", "v", "warn",
		"Log level: debug, info, warn or error")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads the settings file and FRAMECTL_* environment variables
func initConfig() {
	viper.SetEnvPrefix("FRAMECTL")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if path := viper.GetString("config"); path != "" {
		viper.SetConfigFile(path)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(settingsName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "framectl: could not read settings:", err)
		}
	}
}

func initLog(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// settings is what framectl persists between runs
type settings struct {
	Server string `yaml:"server"`
	Token  string `yaml:"token,omitempty"`
}

func settingsPath() (string, error) {
	if path := viper.ConfigFileUsed(); path != "" {
		return path, nil
	}
	if path := viper.GetString("config"); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate home directory: %w", err)
	}
	return filepath.Join(home, settingsName+".yaml"), nil
}

// saveToken writes the server and token to the settings file
func saveToken(token string) error {
	path, err := settingsPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(settings{Server: viper.GetString("server"), Token: token})
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Debug().Str("path", path).Msg("Settings saved")
	return nil
}

func newClient() *client.Client {
	return client.New(viper.GetString("server"), viper.GetString("token"))
}

// signedIn returns a client, failing when no token is configured
func signedIn() (*client.Client, error) {
	c := newClient()
	if c.Token() == "" {
		return nil, errors.New("not signed in, run framectl login first")
	}
	return c, nil
}
