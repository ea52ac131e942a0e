package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gammazero/wampsub/client"
	"github.com/gammazero/wampsub/transport/serialize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	routerURL     string
	realm         string
	serialization string
	timeout       time.Duration
	keepAlive     time.Duration
	recvLimit     int
	metricsAddr   string
	logLevel      string
	verbose       bool
	debug         bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wampsub",
	Short: "WAMP publish/subscribe client",
	Long: `wampsub joins a realm on a WAMP router, and publishes events to topics
or prints the events published to topics.

The router URL selects the transport:
  ws://host:port/path, wss://...    websocket (http and https also accepted)
  tcp://host:port, tcps://...       rawsocket over TCP
  unix:///path/to/socket            rawsocket over a unix socket`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&routerURL, "url", "u", "ws://localhost:8080/ws", "router URL")
	flags.StringVarP(&realm, "realm", "r", "realm1", "realm to join")
	flags.StringVarP(&serialization, "serialization", "s", "json", "serialization: json, msgpack, or cbor")
	flags.DurationVar(&timeout, "timeout", 5*time.Second, "time to wait for router responses")
	flags.DurationVar(&keepAlive, "keepalive", 0, "websocket ping interval, 0 to disable")
	flags.IntVar(&recvLimit, "recv-limit", 0, "rawsocket receive size limit, 0 for the 16M default")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "address to serve prometheus metrics on, such as :9090")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, or error")
	flags.BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	flags.BoolVarP(&debug, "debug", "d", false, "debug output")
}

func parseSerialization(name string) (serialize.Serialization, error) {
	switch strings.ToLower(name) {
	case "json":
		return serialize.JSON, nil
	case "msgpack":
		return serialize.MSGPACK, nil
	case "cbor":
		return serialize.CBOR, nil
	}
	return 0, fmt.Errorf("unknown serialization %q", name)
}

func setupLogger() (*zap.Logger, error) {
	level := logLevel
	// Override log level based on flags
	if debug {
		level = "debug"
	} else if verbose && level == "info" {
		level = "debug"
	}

	var zapLevel zap.AtomicLevel
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn", "warning":
		zapLevel = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapLevel = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	config := zap.NewProductionConfig()
	config.Level = zapLevel
	config.Development = debug
	return config.Build()
}

// newClient builds a client from the global flags.
func newClient(logger *zap.Logger) (*client.Client, error) {
	ser, err := parseSerialization(serialization)
	if err != nil {
		return nil, err
	}
	cfg := client.Config{
		ResponseTimeout: timeout,
		Serialization:   ser,
		RecvLimit:       recvLimit,
		Logger:          logger,
		ProtocolViolationHandler: func(err error) {
			logger.Warn("Router sent bad message", zap.Error(err))
		},
	}
	cfg.WsCfg.KeepAlive = keepAlive
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		cfg.Registerer = reg
		serveMetrics(reg, logger)
	}
	return client.New(routerURL, realm, cfg)
}

// serveMetrics serves the registry's metrics over http until the process
// exits.
func serveMetrics(reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Serving metrics", zap.String("addr", metricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
}
