package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mongodb.org/mongo-driver/mongo"

	"taskagent/internal/pkg/mongodb"
	"taskagent/internal/pkg/perf"
	"taskagent/internal/server"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent in the terminal",
	Long: `Start an interactive session with the task agent.
Each line is sent as one turn; the conversation continues until EOF or /quit.
Use /new to start a fresh conversation.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	flags := chatCmd.Flags()
	flags.StringP("user", "u", "cli-user", "user id owning the conversation and tasks")
	flags.String("conversation", "", "continue an existing conversation")
	flags.String("ai-api-key", "", "AI API key (recommend using env: TASKAGENT_AI_API_KEY; empty runs in mock mode)")
	flags.String("mongo-uri", "", "MongoDB URI (empty uses in-memory storage)")

	_ = viper.BindPFlag("ai.api_key", flags.Lookup("ai-api-key"))
	_ = viper.BindPFlag("mongo.uri", flags.Lookup("mongo-uri"))
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	userID, _ := cmd.Flags().GetString("user")
	conversationID, _ := cmd.Flags().GetString("conversation")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var db *mongo.Database
	if cfg.Mongo.URI != "" {
		client, err := mongodb.New(&cfg.Mongo)
		if err != nil {
			return fmt.Errorf("failed to connect to MongoDB: %w", err)
		}
		defer func() { _ = client.Close(context.Background()) }()
		if err := mongodb.EnsureIndexes(ctx, client.Database()); err != nil {
			log.Warn().Err(err).Msg("failed to ensure indexes")
		}
		db = client.Database()
	}

	monitor := perf.New(&cfg.Perf)
	defer monitor.Close()

	services, err := server.NewServices(ctx, cfg, db, monitor)
	if err != nil {
		return err
	}

	return chatLoop(ctx, services, userID, conversationID, cmd.InOrStdin(), cmd.OutOrStdout())
}

// chatLoop 逐行读取输入并执行一轮对话
func chatLoop(ctx context.Context, services *server.Services, userID, conversationID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	fmt.Fprintf(out, "Chatting as %s. Type /new for a new conversation, /quit to exit.\n", userID)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/new":
			conversationID = ""
			fmt.Fprintln(out, "Started a new conversation.")
			continue
		}

		result, err := services.Chat.Chat(ctx, userID, line, conversationID)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		conversationID = result.ConversationID

		for _, call := range result.ToolCalls {
			status := "ok"
			if call.Result != nil && !call.Result.Success {
				status = call.Result.ErrorCode()
			}
			fmt.Fprintf(out, "  [%s %s] %s\n", call.Name, call.Arguments, status)
		}
		fmt.Fprintln(out, result.Response)
	}
}
