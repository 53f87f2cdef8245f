package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/kRPC/cmd/demo"
	"github.com/ValentinKolb/kRPC/cmd/serve"
	"github.com/ValentinKolb/kRPC/cmd/topics"
	"github.com/ValentinKolb/kRPC/cmd/user"
	"github.com/ValentinKolb/kRPC/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "krpc",
		Short: "request/response RPC over Kafka",
		Long: fmt.Sprintf(`kRPC (v%s)

Request/response calls on top of Apache Kafka topics. Requests and replies
are correlated by id, every call ends with a reply, a timeout or an error.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kRPC",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kRPC v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(user.UserCommands)
	RootCmd.AddCommand(topics.TopicCommands)
	RootCmd.AddCommand(demo.DemoCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "json", util.WrapString("serializer to use (json, gob)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "kafka", util.WrapString("transport to use (kafka, memory). memory only reaches services in the same process"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("level at which logs will be output (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
