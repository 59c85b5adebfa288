package cmd

import (
	"fmt"
	"time"

	"schoolfee/utils"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an admin API token for an organization",
	RunE:  issueToken,
}

func init() {
	tokenCmd.Flags().String("org", "", "organization ID the token is scoped to")
	tokenCmd.Flags().String("user", "cli", "user ID recorded in the token")
	tokenCmd.Flags().String("role", utils.RoleAdmin, "role: admin or viewer")
	_ = tokenCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(tokenCmd)
}

func issueToken(cmd *cobra.Command, _ []string) error {
	orgID, _ := cmd.Flags().GetString("org")
	userID, _ := cmd.Flags().GetString("user")
	role, _ := cmd.Flags().GetString("role")

	if role != utils.RoleAdmin && role != utils.RoleViewer {
		return fmt.Errorf("unknown role %q", role)
	}

	token, expiresAt, err := utils.NewJWTService(cfg.JWTSecret, cfg.JWTTTL).GenerateToken(userID, orgID, role)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
	return nil
}
