package user

import (
	"github.com/ValentinKolb/kRPC/cmd/util"
	"github.com/ValentinKolb/kRPC/lib/users"
	"github.com/ValentinKolb/kRPC/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcClient *client.RPCClient
	userStore users.IUserStore

	// UserCommands represents the user command group
	UserCommands = &cobra.Command{
		Use:                "user",
		Short:              "Perform user service operations",
		PersistentPreRunE:  setupUserClient,
		PersistentPostRunE: closeUserClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the user command
	util.SetupClientFlags(UserCommands)

	// Add subcommands
	UserCommands.AddCommand(createCmd)
	UserCommands.AddCommand(getCmd)
	UserCommands.AddCommand(updateCmd)
	UserCommands.AddCommand(deleteCmd)
	UserCommands.AddCommand(listCmd)
	UserCommands.AddCommand(perfTestCmd)
}

// setupUserClient initializes the remote user store
func setupUserClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	if err := util.InitLogging(); err != nil {
		return err
	}

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the client and the store on top of it
	rpcClient, err = client.NewRPCClient(*util.GetClientConfig(), t, s)
	if err != nil {
		return err
	}
	userStore = client.NewUserStoreForClient(rpcClient, util.GetRequestTopic())

	return nil
}

func closeUserClient(_ *cobra.Command, _ []string) error {
	if rpcClient == nil {
		return nil
	}
	return rpcClient.Close()
}
