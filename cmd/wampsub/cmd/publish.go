package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gammazero/wampsub/wamp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:   "publish <topic> [arg...]",
	Short: "Publish an event to a topic",
	Long: `Publish an event to a topic.

Each arg is a positional argument of the event.  An arg that is valid JSON is
sent as the value it encodes, anything else is sent as a string.

Examples:
  wampsub publish example.hello "hello world"
  wampsub publish example.sensor 42 '{"unit":"C"}'
  wampsub publish --kwargs '{"user":"alice"}' --acknowledge example.login`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPublish,
}

var (
	publishKwargs      string
	publishAcknowledge bool
	publishExcludeMe   bool
	publishCount       int
	publishInterval    time.Duration
)

func init() {
	rootCmd.AddCommand(publishCmd)

	publishCmd.Flags().StringVar(&publishKwargs, "kwargs", "", "keyword arguments as a JSON object")
	publishCmd.Flags().BoolVar(&publishAcknowledge, "acknowledge", false, "wait for the router to confirm each publication")
	publishCmd.Flags().BoolVar(&publishExcludeMe, "exclude-me", true, "do not deliver the event to this session")
	publishCmd.Flags().IntVarP(&publishCount, "count", "n", 1, "number of times to publish")
	publishCmd.Flags().DurationVar(&publishInterval, "interval", 0, "time between publications")
}

func runPublish(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger()
	if err != nil {
		return fmt.Errorf("failed to setup logger: %w", err)
	}
	defer logger.Sync()

	topic := args[0]
	pubArgs := make(wamp.Seq, 0, len(args)-1)
	for _, s := range args[1:] {
		v, err := parseArg(s)
		if err != nil {
			return err
		}
		pubArgs = append(pubArgs, v)
	}
	var kwargs wamp.Map
	if publishKwargs != "" {
		v, err := parseJSON(publishKwargs)
		if err != nil {
			return fmt.Errorf("invalid kwargs: %w", err)
		}
		var ok bool
		if kwargs, ok = v.(wamp.Map); !ok {
			return fmt.Errorf("kwargs is not a JSON object: %s", publishKwargs)
		}
	}

	c, err := newClient(logger)
	if err != nil {
		return err
	}
	sess, err := c.Connect(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to connect to router: %w", err)
	}
	defer func() {
		if err := sess.Close(); err != nil {
			logger.Warn("Error during session close", zap.Error(err))
		}
	}()

	opts := wamp.Dict{}
	if publishAcknowledge {
		opts[wamp.OptAcknowledge] = true
	}
	if !publishExcludeMe {
		opts[wamp.OptExcludeMe] = false
	}

	for i := 0; i < publishCount; i++ {
		if i != 0 && publishInterval != 0 {
			select {
			case <-time.After(publishInterval):
			case <-sess.Done():
				return fmt.Errorf("session ended: %w", sess.Err())
			}
		}
		if err = sess.Publish(topic, opts, pubArgs, kwargs); err != nil {
			return fmt.Errorf("failed to publish: %w", err)
		}
		logger.Debug("Published event", zap.String("topic", topic), zap.Int("n", i+1))
	}
	logger.Info("Published", zap.String("topic", topic), zap.Int("count", publishCount))
	return nil
}

// parseArg returns the value encoded by s if s is JSON, otherwise s as a
// string.
func parseArg(s string) (wamp.Value, error) {
	if !json.Valid([]byte(s)) {
		return wamp.String(s), nil
	}
	return parseJSON(s)
}

func parseJSON(s string) (wamp.Value, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return wamp.ValueOf(jsonNumbers(v))
}

// jsonNumbers replaces json.Number values with integers where they fit, and
// floats where they do not.
func jsonNumbers(v interface{}) interface{} {
	switch v := v.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		f, _ := v.Float64()
		return f
	case []interface{}:
		for i := range v {
			v[i] = jsonNumbers(v[i])
		}
	case map[string]interface{}:
		for k := range v {
			v[k] = jsonNumbers(v[k])
		}
	}
	return v
}
