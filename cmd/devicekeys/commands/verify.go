package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"devicekeys/internal/domain"
)

var errInvalidSignature = errors.New("signed prekey signature is not valid")

func verifyCmd(c *cli) *cobra.Command {
	var identityKey, prekey, sig, bundlePath string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a signed prekey",
		Long: "Verify a signed prekey given as --identity-key/--prekey/--sig, or as a " +
			"bundle JSON file with --bundle (- for stdin).",
		RunE: func(cmd *cobra.Command, args []string) error {
			var ok bool
			if bundlePath != "" {
				var b domain.PublicBundle
				if err := readJSON(cmd, bundlePath, &b); err != nil {
					return err
				}
				ok = c.app.Verifier.VerifyBundle(b)
			} else {
				ok = c.app.Verifier.Verify(identityKey, prekey, sig)
			}
			if !ok {
				return errInvalidSignature
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signature OK")
			return nil
		},
	}
	cmd.Flags().StringVar(&identityKey, "identity-key", "", "base64 identity public key")
	cmd.Flags().StringVar(&prekey, "prekey", "", "base64 signed prekey public key")
	cmd.Flags().StringVar(&sig, "sig", "", "base64 signature")
	cmd.Flags().StringVar(&bundlePath, "bundle", "", "bundle JSON file, - for stdin")
	return cmd
}

func readJSON(cmd *cobra.Command, path string, v any) error {
	var r io.Reader
	if path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	return json.NewDecoder(r).Decode(v)
}
