package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/dIPC/cmd/demo"
	"github.com/ValentinKolb/dIPC/cmd/endpoint"
	"github.com/ValentinKolb/dIPC/cmd/serve"
	"github.com/ValentinKolb/dIPC/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dipc",
		Short: "framed duplex ipc channels",
		Long: fmt.Sprintf(`dIPC (v%s)

Bidirectional, message framed channels between two endpoints, backed by a
pair of fixed size ring buffers with blocking flow control and optional
per endpoint content transforms (reverse, rot13, base64).`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dIPC",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dIPC v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(endpoint.EndpointCommands)
	RootCmd.AddCommand(demo.DemoCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary, cbor)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "unix", util.WrapString("transport to use (http, tcp, unix)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
