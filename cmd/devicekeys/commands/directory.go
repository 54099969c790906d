package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"devicekeys/internal/domain"
)

var errIncompleteBundle = errors.New("no complete bundle stored; run generate first")

func publishCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish the public bundle to the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			user, err := c.userID()
			if err != nil {
				return err
			}
			dir, err := c.app.Directory()
			if err != nil {
				return err
			}
			lb, err := c.app.Identity.Load(ctx, user)
			if err != nil {
				return err
			}
			pb, ok := lb.Public()
			if !ok {
				return errIncompleteBundle
			}
			if err := dir.PublishBundle(ctx, user, pb); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Published bundle for %s\n", user)
			return nil
		},
	}
}

func fetchCmd(c *cli) *cobra.Command {
	var peer string
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and verify a peer's bundle",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := c.fetchVerified(cmd, domain.UserID(peer))
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), b)
		},
	}
	cmd.Flags().StringVar(&peer, "peer", "", "user id to fetch")
	return cmd
}

// fetchVerified downloads peer's bundle and rejects it unless the signed
// prekey verifies.
func (c *cli) fetchVerified(cmd *cobra.Command, peer domain.UserID) (domain.PublicBundle, error) {
	dir, err := c.app.Directory()
	if err != nil {
		return domain.PublicBundle{}, err
	}
	b, err := dir.FetchBundle(commandContext(cmd), peer)
	if err != nil {
		return domain.PublicBundle{}, err
	}
	if !c.app.Verifier.VerifyBundle(b) {
		return domain.PublicBundle{}, fmt.Errorf("bundle for %s: %w", peer, errInvalidSignature)
	}
	return b, nil
}
