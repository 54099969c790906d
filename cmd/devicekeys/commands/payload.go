package commands

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"devicekeys/internal/domain"
)

func encryptCmd(c *cli) *cobra.Command {
	var toPrekey, toUser, message string
	cmd := &cobra.Command{
		Use:   "encrypt",
		Short: "Encrypt a payload for a peer",
		Long: "Encrypt --message (or stdin) for the peer signed prekey given by --to-prekey, " +
			"or for --to, whose bundle is fetched from the directory and verified first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			user, err := c.userID()
			if err != nil {
				return err
			}
			if toUser != "" {
				b, err := c.fetchVerified(cmd, domain.UserID(toUser))
				if err != nil {
					return err
				}
				toPrekey = b.SignedPrekeyPub
			}
			if toPrekey == "" {
				return errors.New("one of --to-prekey or --to is required")
			}

			pt := []byte(message)
			if !cmd.Flags().Changed("message") {
				if pt, err = io.ReadAll(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			msg, err := c.app.Payload.Encrypt(ctx, user, toPrekey, pt)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), msg)
		},
	}
	cmd.Flags().StringVar(&toPrekey, "to-prekey", "", "recipient signed prekey, base64")
	cmd.Flags().StringVar(&toUser, "to", "", "recipient user id, resolved through the directory")
	cmd.Flags().StringVarP(&message, "message", "m", "", "plaintext (default: read stdin)")
	return cmd
}

func decryptCmd(c *cli) *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "decrypt",
		Short: "Decrypt an incoming payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := c.userID()
			if err != nil {
				return err
			}
			var msg domain.IncomingMessage
			if err := readJSON(cmd, in, &msg); err != nil {
				return err
			}
			pt, err := c.app.Payload.Decrypt(commandContext(cmd), user, msg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(pt)
			return err
		},
	}
	cmd.Flags().StringVar(&in, "in", "-", "message JSON file, - for stdin")
	return cmd
}
