package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/exam-api/internal/config"
	"github.com/yourusername/exam-api/pkg/auth"
)

// NewTokenCmd выпускает bearer-токен для локальной разработки и ручных проверок.
// В рабочем окружении токены выдает внешний сервис аутентификации.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		userID uint
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			svc, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)
			if err != nil {
				return err
			}
			token, err := svc.GenerateToken(userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&role, "role", auth.RoleStudent, "role: student, staff or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 2*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
