package topics

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/kRPC/cmd/util"
	"github.com/ValentinKolb/kRPC/rpc/transport/kafka"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const adminTimeout = 30 * time.Second

var (
	// TopicCommands represents the topic administration command group
	TopicCommands = &cobra.Command{
		Use:   "topics",
		Short: "Manage the Kafka topics used by kRPC",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := util.BindCommandFlags(cmd); err != nil {
				return err
			}
			return util.InitLogging()
		},
	}
	setupCmd = &cobra.Command{
		Use:   "setup",
		Short: "Creates the request and reply topics if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
			defer cancel()

			specs := make([]kafka.TopicSpec, 0, 2)
			for _, name := range []string{viper.GetString("request-topic"), viper.GetString("reply-topic")} {
				specs = append(specs, kafka.TopicSpec{
					Name:              name,
					Partitions:        viper.GetInt("partitions"),
					ReplicationFactor: viper.GetInt("replication-factor"),
				})
			}

			created, err := kafka.EnsureTopics(ctx, util.GetBrokerConfig(), specs...)
			if err != nil {
				return err
			}
			fmt.Printf("created %d topics %v\n", len(created), created)
			return nil
		},
	}
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists all topics of the cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), adminTimeout)
			defer cancel()

			topics, err := kafka.ListTopics(ctx, util.GetBrokerConfig())
			if err != nil {
				return err
			}
			for _, topic := range topics {
				fmt.Println(topic)
			}
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupClientFlags(TopicCommands)

	key := "partitions"
	setupCmd.Flags().Int(key, 1, util.WrapString("Number of partitions of new topics"))
	key = "replication-factor"
	setupCmd.Flags().Int(key, 1, util.WrapString("Replication factor of new topics"))

	TopicCommands.AddCommand(setupCmd)
	TopicCommands.AddCommand(listCmd)
}
