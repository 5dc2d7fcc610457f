// ABOUTME: chat command: interactive client for a running agent-server
// ABOUTME: Uses readline for history and line editing, or --message for one shot

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/agent-server/internal/api"
	"github.com/2389/agent-server/internal/config"
)

// chatClient posts messages to one chat endpoint.
type chatClient struct {
	httpClient *http.Client
	endpoint   string
	sessionID  string
}

func newChatClient(baseURL, path, sessionID string, timeout time.Duration) *chatClient {
	return &chatClient{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/"),
		sessionID:  sessionID,
	}
}

// Send posts one message and decodes the reply envelope. A non-2xx reply
// that still carries an envelope is returned together with an error.
func (c *chatClient) Send(ctx context.Context, message string) (*api.ChatResponse, error) {
	body, err := json.Marshal(api.ChatRequest{Message: &message, SessionID: c.sessionID})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		var chat api.ChatResponse
		if err := json.Unmarshal(data, &chat); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		return &chat, nil
	}

	var chat api.ChatResponse
	if err := json.Unmarshal(data, &chat); err == nil && chat.Response != "" {
		return &chat, fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	var apiErr api.ErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error != "" {
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, apiErr.Error)
	}
	return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
}

// endpointForMode picks the stateful chat endpoint for a server mode.
func endpointForMode(mode string) string {
	switch mode {
	case config.ModeDirect:
		return "/chat"
	case config.ModeComparison:
		return "/runner"
	default:
		return "/run"
	}
}

func newChatCmd(configPath *string) *cobra.Command {
	var (
		baseURL   string
		endpoint  string
		sessionID string
		message   string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to a running agent-server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if baseURL == "" || endpoint == "" {
				cfg, _, err := loadConfig(*configPath)
				if err != nil {
					return err
				}
				if baseURL == "" {
					baseURL = serverURL(cfg.Server)
				}
				if endpoint == "" {
					endpoint = endpointForMode(cfg.Server.Mode)
				}
			}

			client := newChatClient(baseURL, endpoint, sessionID, timeout)
			if message != "" {
				return sendOnce(cmd.Context(), client, cmd.OutOrStdout(), message)
			}
			return interactiveChat(cmd.Context(), client)
		},
	}

	cmd.Flags().StringVar(&baseURL, "url", "", "server base URL (default from config)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "chat endpoint path (default from server mode)")
	cmd.Flags().StringVarP(&sessionID, "session", "s", api.DefaultSessionID, "conversation ID")
	cmd.Flags().StringVar(&message, "message", "", "send one message and exit")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "per-message timeout")
	return cmd
}

func sendOnce(ctx context.Context, client *chatClient, out io.Writer, message string) error {
	resp, err := client.Send(ctx, message)
	if resp != nil {
		fmt.Fprintln(out, resp.Response)
	}
	return err
}

func interactiveChat(ctx context.Context, client *chatClient) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "you> ",
		HistoryFile:     filepath.Join(os.TempDir(), ".agent_server_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		return simpleChat(ctx, client, os.Stdin, os.Stdout)
	}
	defer rl.Close()

	fmt.Printf("Chatting on %s as session %q (Ctrl+C to exit)\n\n", client.endpoint, client.sessionID)

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return nil
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		if done := chatTurn(ctx, client, os.Stdout, line); done {
			return nil
		}
	}
}

func simpleChat(ctx context.Context, client *chatClient, in io.Reader, out io.Writer) error {
	reader := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "you> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "\nGoodbye!")
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		if done := chatTurn(ctx, client, out, line); done {
			return nil
		}
	}
}

// chatTurn sends one line and prints the reply. It reports true when the
// user asked to leave.
func chatTurn(ctx context.Context, client *chatClient, out io.Writer, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}
	if input == "exit" || input == "quit" {
		fmt.Fprintln(out, "Goodbye!")
		return true
	}

	resp, err := client.Send(ctx, input)
	if resp != nil {
		reply := resp.Response
		if strings.HasPrefix(reply, "Error: ") {
			reply = color.RedString(reply)
		}
		fmt.Fprintf(out, "\n%s %s\n\n", color.CyanString("agent>"), reply)
	}
	if err != nil {
		fmt.Fprintf(out, "%s\n\n", color.YellowString("%v", err))
	}
	return false
}
