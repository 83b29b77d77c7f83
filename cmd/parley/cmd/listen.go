package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tsarna/parley/pkg/parley/client"
	"github.com/tsarna/parley/pkg/parley/protocol"
)

var listenCmd = &cobra.Command{
	Use:   "listen <websocket-url>",
	Short: "Print every frame received on a parley channel",
	Long: `Connect to one of the parley websocket channels and print every frame
received, one per line, until interrupted.

Examples:
  parley listen ws://localhost:8080/PiedPiper/api/v1/chat/ws/messages --token $TOKEN
  parley listen ws://localhost:8080/PiedPiper/api/v1/ws/friends --friends --token $TOKEN`,
	Args: cobra.ExactArgs(1),
	RunE: runListen,
}

var (
	listenToken       string
	listenDialTimeout time.Duration
	listenFriends     bool
)

func init() {
	rootCmd.AddCommand(listenCmd)

	listenCmd.Flags().StringVar(&listenToken, "token", "", "access token sent as a bearer credential")
	listenCmd.Flags().DurationVar(&listenDialTimeout, "dial-timeout", 10*time.Second, "WebSocket dial timeout")
	listenCmd.Flags().BoolVar(&listenFriends, "friends", false, "decode frames as friend events")
}

// printer writes raw frames to out, one per line.
type printer struct {
	mu     sync.Mutex
	out    io.Writer
	logger *zap.Logger
}

func (p *printer) OnMessage(ctx context.Context, msg protocol.Message, raw []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if msg == nil {
		p.logger.Warn("Received undecodable frame", zap.ByteString("frame", raw))
	}
	fmt.Fprintln(p.out, string(raw))
}

func decoderFor(friends bool) client.Decoder {
	if friends {
		return client.FriendFrames
	}
	return client.ChatFrames
}

func connect(ctx context.Context, url, token string, dialTimeout time.Duration, friends bool, handler client.Handler, logger *zap.Logger) (*client.Client, error) {
	builder := client.NewClient().
		WithURL(url).
		WithLogger(logger).
		WithDialTimeout(dialTimeout).
		WithDecoder(decoderFor(friends)).
		WithHandler(handler)
	if token != "" {
		builder = builder.WithToken(token)
	}

	c, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create WebSocket client: %w", err)
	}
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to WebSocket server: %w", err)
	}
	return c, nil
}

func runListen(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := &printer{out: cmd.OutOrStdout(), logger: logger}
	c, err := connect(ctx, args[0], listenToken, listenDialTimeout, listenFriends, handler, logger)
	if err != nil {
		return err
	}

	logger.Info("Listening for frames... (Press Ctrl+C to exit)", zap.String("url", args[0]))

	select {
	case <-ctx.Done():
		logger.Debug("Signal received, exiting")
		if err := c.Disconnect(); err != nil {
			logger.Warn("Error during client disconnect", zap.Error(err))
		}
		return nil
	case <-c.Done():
		if err := c.Err(); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("connection closed: %w", err)
		}
		return nil
	}
}
