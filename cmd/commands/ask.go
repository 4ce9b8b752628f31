package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	wsclient "github.com/yoonhw/jibsa/clients/ws"
	wsprotocol "github.com/yoonhw/jibsa/internal/gateway/ws"
	"github.com/yoonhw/jibsa/internal/orchestrate"
)

// NewAskCommand returns the ask subcommand.
func NewAskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Send one utterance to the gateway and print the response",
		ArgsUsage: "<message>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "gateway",
				Usage: "Gateway WebSocket URL",
				Value: "ws://127.0.0.1:8420/api/ws",
			},
			&cli.StringFlag{
				Name:    "actor",
				Aliases: []string{"a"},
				Usage:   "Actor ID for saved-list operations",
			},
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "Clear the conversation context before asking",
			},
			&cli.IntFlag{
				Name:  "timeout",
				Usage: "Response timeout in seconds",
				Value: 120,
			},
		},
		Action: runAsk,
	}
}

func runAsk(_ context.Context, cmd *cli.Command) error {
	message := cmd.Args().First()
	if message == "" {
		return fmt.Errorf("usage: jibsa ask <message>")
	}

	timeoutSecs := cmd.Int("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)
	defer cancel()

	client, err := wsclient.Dial(ctx, cmd.String("gateway"))
	if err != nil {
		return fmt.Errorf("connect to gateway: %w", err)
	}
	defer client.Close()

	if cmd.Bool("reset") {
		id, err := client.Reset()
		if err != nil {
			return fmt.Errorf("reset context: %w", err)
		}
		if _, err := awaitResponse(client, id); err != nil {
			return fmt.Errorf("reset context: %w", err)
		}
	}

	id, err := client.Chat(message, cmd.String("actor"))
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	frame, err := awaitResponse(client, id)
	if err != nil {
		return fmt.Errorf("await response: %w", err)
	}
	if frame.OK != nil && !*frame.OK {
		return fmt.Errorf("gateway error: %s", frame.Error)
	}

	var resp orchestrate.Response
	if err := json.Unmarshal(frame.Payload, &resp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	fmt.Println(resp.Text)
	if resp.ResultKind == orchestrate.KindSearchResult {
		fmt.Fprintf(os.Stderr, "listings: %d, capabilities: %v\n", len(resp.Records), resp.Capabilities)
	}
	return nil
}

// awaitResponse drains frames until the response matching id arrives.
// Event frames broadcast in the meantime are skipped.
func awaitResponse(client *wsclient.Client, id string) (wsprotocol.Frame, error) {
	for {
		frame, err := client.ReadFrame()
		if err != nil {
			return wsprotocol.Frame{}, err
		}
		if frame.Type == wsprotocol.FrameTypeResponse && frame.ID == id {
			return frame, nil
		}
	}
}
