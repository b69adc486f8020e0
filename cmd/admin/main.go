package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"chatrelay/backend/internal/api/handler"
	"chatrelay/backend/internal/config"
	"chatrelay/backend/internal/models"
	"chatrelay/backend/internal/storage"

	"github.com/go-resty/resty/v2"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// post-system goes through the running relay so members get it live.
	if os.Args[1] == "post-system" {
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin post-system <chat_id> <content>")
			os.Exit(1)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		client := newRelayClient(cfg.Admin.ServerURL, cfg.Auth.AdminToken)
		msg, err := postSystem(ctx, client, os.Args[2], os.Args[3])
		if err != nil {
			log.Fatalf("Error posting system message: %v", err)
		}
		fmt.Printf("System message %d delivered to %s.\n", msg.ID, msg.ChatID)
		return
	}

	db, err := storage.Open(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	// No redis needed for admin CLI
	storageSvc := storage.NewStorageService(db, nil, logs.GetLoggerFromString(cfg.LogLevel), 0)
	defer storageSvc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := storageSvc.Migrate(ctx); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	command := os.Args[1]

	switch command {
	case "messages":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin messages <chat_id> [limit]")
			os.Exit(1)
		}
		limit := config.DefaultHistoryLimit
		if len(os.Args) > 3 {
			limit, err = strconv.Atoi(os.Args[3])
			if err != nil || limit <= 0 {
				fmt.Println("Invalid limit. Please provide a positive integer.")
				os.Exit(1)
			}
		}
		if err := printMessages(ctx, storageSvc, os.Args[2], limit); err != nil {
			log.Fatalf("Error listing messages: %v", err)
		}
	case "message":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin message <message_id>")
			os.Exit(1)
		}
		id, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			fmt.Println("Invalid message ID. Please provide an integer.")
			os.Exit(1)
		}
		msg, err := storageSvc.FetchMessageByID(ctx, uint(id))
		if err != nil {
			log.Fatalf("Error fetching message: %v", err)
		}
		printMessage(*msg)
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func printMessages(ctx context.Context, s storage.Storage, chatID string, limit int) error {
	messages, err := s.ListMessages(ctx, chatID, 0, limit)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		fmt.Printf("No messages in %s.\n", chatID)
		return nil
	}
	// Oldest first reads naturally in a terminal.
	for i := len(messages) - 1; i >= 0; i-- {
		printMessage(messages[i])
	}
	return nil
}

func printMessage(m models.Message) {
	fmt.Printf("#%d [%s] %s %s: %s\n", m.ID, m.ChatID, m.Timestamp.Format(time.RFC3339), m.Sender, m.Content)
}

func newRelayClient(serverURL, adminToken string) *resty.Client {
	return resty.New().
		SetBaseURL(serverURL).
		SetTimeout(10*time.Second).
		SetHeader(handler.AdminTokenHeader, adminToken)
}

// postSystem asks the relay to store a system message and broadcast it.
func postSystem(ctx context.Context, client *resty.Client, chatID, content string) (*models.Message, error) {
	var msg models.Message
	var apiErr struct {
		Error string `json:"error"`
	}
	resp, err := client.R().
		SetContext(ctx).
		SetPathParam("chatId", chatID).
		SetBody(map[string]any{"type": models.KindSystem, "content": content}).
		SetResult(&msg).
		SetError(&apiErr).
		Post("/api/chats/{chatId}/messages")
	if err != nil {
		return nil, fmt.Errorf("post to relay: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("relay answered %s: %s", resp.Status(), apiErr.Error)
	}
	return &msg, nil
}
