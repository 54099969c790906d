package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func generateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate and store a new device key bundle",
		Long:  "Generate a new identity key and signed prekey for --user, replacing any existing bundle.",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.userID()
			if err != nil {
				return err
			}
			b, err := c.app.Identity.Generate(commandContext(cmd), user)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), b)
		},
	}
}

func loadCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Print the stored public bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.userID()
			if err != nil {
				return err
			}
			lb, err := c.app.Identity.Load(commandContext(cmd), user)
			if err != nil {
				return err
			}
			out := struct {
				User     string `json:"user"`
				Complete bool   `json:"complete"`
				Bundle   any    `json:"bundle,omitempty"`
			}{User: user.String(), Complete: lb.Complete()}
			if pb, ok := lb.Public(); ok {
				out.Bundle = pb
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
}

func fingerprintCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print identity fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.userID()
			if err != nil {
				return err
			}
			fp, err := c.app.Identity.Fingerprint(commandContext(cmd), user)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fingerprint: %s\n", fp)
			return nil
		},
	}
}

func clearCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored key record for --user",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.userID()
			if err != nil {
				return err
			}
			if err := c.app.Identity.Clear(commandContext(cmd), user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared device keys for %s\n", user)
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
