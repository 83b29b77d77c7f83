package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var sendCmd = &cobra.Command{
	Use:   "send <websocket-url> <json-frame>",
	Short: "Send one command frame and print the replies",
	Long: `Connect to a parley websocket channel, send a single JSON command frame,
and print every frame received until --wait elapses.

Examples:
  parley send ws://localhost:8080/PiedPiper/api/v1/chat/ws/messages \
    '{"type":"subscribe_to_messages","chatId":"c1"}' --token $TOKEN
  parley send ws://localhost:8080/PiedPiper/api/v1/ws/friends --friends \
    '{"type":"send_friend_request","targetUserId":"bob"}' --token $TOKEN`,
	Args: cobra.ExactArgs(2),
	RunE: runSend,
}

var (
	sendToken       string
	sendDialTimeout time.Duration
	sendWait        time.Duration
	sendFriends     bool
)

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendToken, "token", "", "access token sent as a bearer credential")
	sendCmd.Flags().DurationVar(&sendDialTimeout, "dial-timeout", 10*time.Second, "WebSocket dial timeout")
	sendCmd.Flags().DurationVar(&sendWait, "wait", 2*time.Second, "how long to print replies before disconnecting")
	sendCmd.Flags().BoolVar(&sendFriends, "friends", false, "decode frames as friend events")
}

func runSend(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	frame := []byte(args[1])
	if !json.Valid(frame) {
		return errors.New("frame is not valid JSON")
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendDialTimeout+sendWait)
	defer cancel()

	handler := &printer{out: cmd.OutOrStdout(), logger: logger}
	c, err := connect(ctx, args[0], sendToken, sendDialTimeout, sendFriends, handler, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Disconnect(); err != nil {
			logger.Warn("Error during client disconnect", zap.Error(err))
		}
	}()

	if err := c.SendRaw(ctx, frame); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}

	select {
	case <-time.After(sendWait):
	case <-c.Done():
		if err := c.Err(); err != nil {
			return fmt.Errorf("connection closed: %w", err)
		}
	}
	return nil
}
