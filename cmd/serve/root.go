package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cmdUtil "github.com/ValentinKolb/kRPC/cmd/util"
	"github.com/ValentinKolb/kRPC/lib/users/lstore"
	"github.com/ValentinKolb/kRPC/rpc/common"
	"github.com/ValentinKolb/kRPC/rpc/server"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

var Logger = logger.GetLogger("server")

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:   "serve",
		Short: "Start the user service",
		Long: `Start the user CRUD service. It consumes requests from the request topic and publishes
the replies to the reply topic named in each request. The configuration can be set via command line flags
or environment variables. The format of the environment variables is KRPC_<flag> (e.g. KRPC_WORKERS=32)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	cmdUtil.SetupBrokerFlags(ServeCmd)

	key := "request-topic"
	ServeCmd.PersistentFlags().String(key, common.DefaultRequestTopic, cmdUtil.WrapString("The topic requests are consumed from"))

	key = "reply-topic"
	ServeCmd.PersistentFlags().String(key, common.DefaultReplyTopic, cmdUtil.WrapString("The topic replies are published to if a request does not name one"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, common.DefaultMaxWorkers, cmdUtil.WrapString("Maximum number of requests processed concurrently"))

	key = "rate-limit"
	ServeCmd.PersistentFlags().Float64(key, 0, cmdUtil.WrapString("Maximum number of requests accepted per second (0 disables the limit)"))

	key = "rate-burst"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("Number of requests accepted at once before the rate limit applies"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the Prometheus /metrics endpoint (e.g. 0.0.0.0:9100). Empty disables the endpoint"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := cmdUtil.InitLogging(); err != nil {
		return err
	}

	serveCmdConfig.Broker = cmdUtil.GetBrokerConfig()
	serveCmdConfig.RequestTopic = viper.GetString("request-topic")
	serveCmdConfig.DefaultReplyTopic = viper.GetString("reply-topic")
	serveCmdConfig.MaxWorkers = viper.GetInt("workers")
	serveCmdConfig.RateLimit = viper.GetFloat64("rate-limit")
	serveCmdConfig.RateBurst = viper.GetInt("rate-burst")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.MaxWorkers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if serveCmdConfig.RateLimit < 0 {
		return fmt.Errorf("rate-limit must not be negative")
	}

	return nil
}

// run starts the user service
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	t, err := cmdUtil.GetTransport()
	if err != nil {
		return err
	}
	if err := t.Connect(serveCmdConfig.Broker); err != nil {
		return err
	}
	defer t.Close()

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
		server.NewUserServerAdapter(lstore.NewLocalStore()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return serv.Serve(ctx)
	})

	if endpoint := serveCmdConfig.MetricsEndpoint; endpoint != "" {
		g.Go(func() error {
			return serveMetrics(ctx, endpoint)
		})
	}

	err = g.Wait()
	for op, n := range serv.Stats() {
		Logger.Infof("handled %d %s requests", n, op)
	}
	return err
}

// serveMetrics exposes all metrics in the Prometheus text format until ctx is done
func serveMetrics(ctx context.Context, endpoint string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	srv := &http.Server{Addr: endpoint, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	Logger.Infof("serving metrics on http://%s/metrics", endpoint)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics endpoint failed: %w", err)
	}
	return nil
}
