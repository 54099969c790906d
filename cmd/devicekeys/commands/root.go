package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"devicekeys/internal/app"
	"devicekeys/internal/domain"
)

const (
	configFileName = "devicekeys.toml"
	passphraseEnv  = "DEVICEKEYS_PASSPHRASE"
)

var errNoUser = errors.New("--user is required")

type cli struct {
	home       string
	configPath string
	passphrase string
	user       string
	logLevel   string
	directory  string

	app *app.App
}

// Execute runs the CLI with os.Args.
func Execute() error {
	root, c := newRootCmd()
	return c.execute(root)
}

// execute runs root and always releases the app afterwards; cobra skips
// the post-run hooks when a command fails.
func (c *cli) execute(root *cobra.Command) error {
	err := root.Execute()
	return errors.Join(err, c.closeApp())
}

func (c *cli) closeApp() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}
	root := &cobra.Command{
		Use:          "devicekeys",
		Short:        "Manage end-to-end encryption device keys",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			pass := c.passphrase
			if pass == "" {
				pass = os.Getenv(passphraseEnv)
			}
			c.app, err = app.New(cfg, pass)
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.closeApp()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.home, "home", "", "data directory (default ~/.devicekeys)")
	pf.StringVar(&c.configPath, "config", "", "TOML config file (default <home>/"+configFileName+" if present)")
	pf.StringVarP(&c.passphrase, "passphrase", "p", "", "passphrase sealing private keys (or $"+passphraseEnv+")")
	pf.StringVarP(&c.user, "user", "u", "", "local user id")
	pf.StringVar(&c.logLevel, "log-level", "", "log level override")
	pf.StringVar(&c.directory, "directory", "", "bundle directory base URL override")

	root.AddCommand(
		generateCmd(c),
		loadCmd(c),
		fingerprintCmd(c),
		verifyCmd(c),
		encryptCmd(c),
		decryptCmd(c),
		clearCmd(c),
		publishCmd(c),
		fetchCmd(c),
	)
	return root, c
}

// loadConfig reads the config file, if any, and applies flag overrides.
func (c *cli) loadConfig() (*app.Config, error) {
	path := c.configPath
	if path == "" && c.home != "" {
		if p := filepath.Join(c.home, configFileName); fileExists(p) {
			path = p
		}
	}

	override := func(cfg *app.Config) {
		if c.home != "" {
			cfg.Home = c.home
		}
		if c.logLevel != "" {
			cfg.Log.Level = c.logLevel
		}
		if c.directory != "" {
			cfg.Directory.URL = c.directory
		}
	}
	if path == "" {
		return app.Load(nil, override)
	}
	return app.LoadFile(path, override)
}

func (c *cli) userID() (domain.UserID, error) {
	u := domain.UserID(c.user)
	if !u.Valid() {
		return "", errNoUser
	}
	return u, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
