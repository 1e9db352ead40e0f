package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"taskagent/internal/pkg/mongodb"
	authrepo "taskagent/internal/repository/auth"
	"taskagent/internal/service"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage API users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user in MongoDB for JWT login",
	Long: `Create a user account that can log in through /api/v1/auth/login.
The password is read from --password or TASKAGENT_INIT_PASSWORD.`,
	RunE: runUserCreate,
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)

	flags := userCreateCmd.Flags()
	flags.String("username", "admin", "username")
	flags.String("password", "", "password (at least 8 characters)")
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg.Mongo.URI == "" {
		return errors.New("mongo.uri is required to create persistent users")
	}

	username, _ := cmd.Flags().GetString("username")
	pwd, _ := cmd.Flags().GetString("password")
	if pwd == "" {
		pwd = os.Getenv("TASKAGENT_INIT_PASSWORD")
	}

	client, err := mongodb.New(&cfg.Mongo)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer func() {
		_ = client.Close(context.Background())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := mongodb.EnsureIndexes(ctx, client.Database()); err != nil {
		log.Warn().Err(err).Msg("failed to ensure indexes")
	}

	// 只用于注册，不签发 token
	authService := service.NewAuthService(authrepo.NewUserRepo(client.Database()), "unused", time.Hour)
	result, err := authService.Register(ctx, username, pwd)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	log.Info().Str("user_id", result.UserID).Str("username", result.Username).Msg("user created")
	fmt.Fprintf(cmd.OutOrStdout(), "User created: id=%s username=%s\n", result.UserID, result.Username)
	return nil
}
