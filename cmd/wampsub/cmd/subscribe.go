package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gammazero/wampsub/client"
	"github.com/gammazero/wampsub/wamp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// subscribeCmd represents the subscribe command
var subscribeCmd = &cobra.Command{
	Use:   "subscribe <topic>...",
	Short: "Print the events published to topics",
	Long: `Subscribe to topics and print each event to stdout as a line holding the
topic, and the positional and keyword arguments as JSON.

Examples:
  wampsub subscribe example.hello
  wampsub subscribe --match prefix example.
  wampsub -u tcp://localhost:8081 -s msgpack subscribe example.hello example.sensor`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubscribe,
}

var subscribeMatch string

func init() {
	rootCmd.AddCommand(subscribeCmd)

	subscribeCmd.Flags().StringVar(&subscribeMatch, "match", wamp.MatchExact, "topic match policy: exact, prefix, or wildcard")
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	switch subscribeMatch {
	case wamp.MatchExact, wamp.MatchPrefix, wamp.MatchWildcard:
	default:
		return fmt.Errorf("unknown match policy %q", subscribeMatch)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	c, err := newClient(logger)
	if err != nil {
		return err
	}
	sess, err := c.Connect(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to router: %w", err)
	}
	defer sess.Close()

	var opts wamp.Dict
	if subscribeMatch != wamp.MatchExact {
		opts = wamp.Dict{wamp.OptMatch: subscribeMatch}
	}
	printer := &eventPrinter{logger: logger}
	for _, topic := range args {
		if err = sess.Subscribe(ctx, topic, printer.print, opts); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
		}
		logger.Info("Subscribed to topic", zap.String("topic", topic))
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Listening for events... (Press Ctrl+C to exit)")

	select {
	case sig := <-sigChan:
		logger.Debug("Signal received, exiting", zap.String("signal", sig.String()))
		return nil
	case <-sess.Done():
		return fmt.Errorf("session ended: %w", sess.Err())
	}
}

type eventPrinter struct {
	logger *zap.Logger
}

func (p *eventPrinter) print(ev *client.Event) {
	// With a pattern subscription the router gives the matching topic.
	topic := ev.Topic
	if t, ok := wamp.AsString(ev.Details[wamp.OptTopic]); ok {
		topic = t
	}
	args, err := json.Marshal(ev.Args())
	if err != nil {
		p.logger.Warn("Failed to marshal event args to JSON",
			zap.String("topic", topic), zap.Error(err))
		return
	}
	kwargs, err := json.Marshal(ev.Kwargs())
	if err != nil {
		p.logger.Warn("Failed to marshal event kwargs to JSON",
			zap.String("topic", topic), zap.Error(err))
		return
	}
	fmt.Printf("%s\t%s\t%s\n", topic, args, kwargs)
}
