package serve

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	cmdUtil "github.com/ValentinKolb/dIPC/cmd/util"
	"github.com/ValentinKolb/dIPC/rpc/common"
	"github.com/ValentinKolb/dIPC/rpc/server"
	"github.com/ValentinKolb/dIPC/rpc/transport"
	"github.com/ValentinKolb/dIPC/rpc/transport/base"
	"github.com/ValentinKolb/dIPC/rpc/transport/http"
	"github.com/ValentinKolb/dIPC/rpc/transport/tcp"
	"github.com/ValentinKolb/dIPC/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dIPC server",
		Long:    `Start the dIPC server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DIPC_<flag> (e.g. DIPC_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(initConfig)

	// add flags
	key := "channels"
	ServeCmd.PersistentFlags().String(key, "1=4096", cmdUtil.WrapString("Comma-separated list of channels to serve. Format: ID=BUFFER_SIZE[:MAX_ENDPOINTS] where MAX_ENDPOINTS is 1 or 2 (default 2)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 0, cmdUtil.WrapString("The maximum time in seconds a single read or write may block, 0 disables the limit"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "/tmp/dipc.sock", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080, /tmp/dipc.sock, ...)"))

	key = "workers-per-conn"
	ServeCmd.PersistentFlags().Int(key, base.DefaultWorkersPerConn, cmdUtil.WrapString("How many requests of a single connection are handled concurrently. Each blocked read or write occupies one worker (ignored for http)"))

	key = "metrics"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Address of the prometheus metrics endpoint (e.g. localhost:9090), empty disables it"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// parse channels
	channels, err := common.ParseChannels(viper.GetString("channels"))
	if err != nil {
		return err
	}
	serveCmdConfig.Channels = channels

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.WorkersPerConn = viper.GetInt("workers-per-conn")
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	if serveCmdConfig.TimeoutSecond < 0 {
		return fmt.Errorf("timeout must not be negative")
	}

	return nil
}

// run starts the dIPC server and stops it on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {

	// parse the serializer
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}

	// Parse the transport
	var t transport.IRPCServerTransport
	switch viper.GetString("transport") {
	case "http":
		t = http.NewHttpServerTransport()
	case "tcp":
		t = tcp.NewTCPServerTransport(64 * 1024)
	case "unix":
		t = unix.NewUnixServerTransport(64 * 1024)
	default:
		return fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}

	serv := server.NewRPCServer(
		*serveCmdConfig,
		t,
		s,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	served := make(chan error, 1)
	go func() { served <- serv.Serve() }()

	select {
	case err := <-served:
		return err
	case <-ctx.Done():
		if err := serv.Shutdown(); err != nil {
			return err
		}
		return <-served
	}
}

// initConfig reads in ENV variables if set.
func initConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dipc")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

}
