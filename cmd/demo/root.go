package demo

import (
	"context"
	"fmt"
	"os"

	"github.com/ValentinKolb/kRPC/cmd/util"
	"github.com/ValentinKolb/kRPC/lib/users/lstore"
	"github.com/ValentinKolb/kRPC/rpc/client"
	"github.com/ValentinKolb/kRPC/rpc/common"
	"github.com/ValentinKolb/kRPC/rpc/serializer"
	"github.com/ValentinKolb/kRPC/rpc/server"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("demo")

// DemoCmd runs the end-to-end scenario against the user service
var DemoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the user service demo",
	Long: `Run an end-to-end scenario against the user service: create three users (using
different spellings of the operation), list, get, update, delete, list again and finally
trigger the error cases. With --transport memory the service is started in-process.`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := util.BindCommandFlags(cmd); err != nil {
			return err
		}
		return util.InitLogging()
	},
	RunE: run,
}

func init() {
	cobra.OnInitialize(util.InitConfig)
	util.SetupClientFlags(DemoCmd)
}

func run(_ *cobra.Command, _ []string) error {
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}
	config := util.GetClientConfig()
	topic := util.GetRequestTopic()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// host the service in-process, nobody else shares the memory broker
	if viper.GetString("transport") == "memory" {
		stop, err := startLocalServer(ctx, config, topic, s)
		if err != nil {
			return err
		}
		defer stop()
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}
	c, err := client.NewRPCClient(*config, t, s)
	if err != nil {
		return err
	}
	defer c.Close()

	summary, err := Run(ctx, c, topic, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Printf("\n%d users at the start, %d at the end, %d expected errors\n", summary.FirstListCount, summary.FinalListCount, len(summary.Errors))
	return nil
}

// startLocalServer runs the user service on the process broker and returns
// once it consumes the request topic. stop shuts it down again.
func startLocalServer(ctx context.Context, config *common.ClientConfig, topic string, s serializer.IRPCSerializer) (stop func(), err error) {
	st, err := util.GetTransport()
	if err != nil {
		return nil, err
	}
	if err := st.Connect(config.Broker); err != nil {
		return nil, err
	}

	serv := server.NewRPCServer(
		common.ServerConfig{Broker: config.Broker, RequestTopic: topic, DefaultReplyTopic: config.GetReplyTopic()},
		st,
		s,
		server.NewUserServerAdapter(lstore.NewLocalStore()),
	)

	ctx, cancel := context.WithCancel(ctx)
	served := make(chan error, 1)
	go func() { served <- serv.Serve(ctx) }()

	// requests to a topic nobody consumes yet are lost
	select {
	case <-serv.Ready():
	case err := <-served:
		cancel()
		st.Close()
		if err == nil {
			err = fmt.Errorf("server stopped before consuming %s", topic)
		}
		return nil, err
	}

	return func() {
		cancel()
		if err := <-served; err != nil {
			Logger.Warningf("in-process server: %v", err)
		}
		st.Close()
	}, nil
}
