package endpoint

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ValentinKolb/dIPC/cmd/util"
	"github.com/ValentinKolb/dIPC/lib/channel"
	"github.com/ValentinKolb/dIPC/rpc/client"
	"github.com/ValentinKolb/dIPC/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcChannel channel.IChannel

	// EndpointCommands represents the endpoint command group
	EndpointCommands = &cobra.Command{
		Use:               "endpoint",
		Short:             "Open an endpoint of a remote channel",
		PersistentPreRunE: setupChannelClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add common RPC flags to the endpoint command
	util.SetupRPCClientFlags(EndpointCommands)

	// Add subcommands
	EndpointCommands.AddCommand(sendCmd)
	EndpointCommands.AddCommand(recvCmd)
	EndpointCommands.AddCommand(pipeCmd)
	EndpointCommands.AddCommand(infoCmd)
	EndpointCommands.AddCommand(perfTestCmd)
}

// setupChannelClient initializes the RPC channel client
func setupChannelClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	if err := common.InitLoggers(viper.GetString("log-level")); err != nil {
		return err
	}

	// Get client configuration components
	config := util.GetClientConfig()
	channelId := util.GetChannelID()

	// Get serializer and transport
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetTransport()
	if err != nil {
		return err
	}

	// Create the channel client
	rpcChannel, err = client.NewRPCChannel(
		channelId,
		*config,
		t,
		s,
	)

	return err
}

// interruptContext is cancelled on SIGINT or SIGTERM so blocked calls return
func interruptContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
