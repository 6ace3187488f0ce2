package util

import (
	"fmt"
	"strings"

	"github.com/ValentinKolb/dIPC/lib/channel"
	"github.com/ValentinKolb/dIPC/lib/transform"
	"github.com/ValentinKolb/dIPC/rpc/common"
	"github.com/ValentinKolb/dIPC/rpc/serializer"
	"github.com/ValentinKolb/dIPC/rpc/transport"
	"github.com/ValentinKolb/dIPC/rpc/transport/http"
	"github.com/ValentinKolb/dIPC/rpc/transport/tcp"
	"github.com/ValentinKolb/dIPC/rpc/transport/unix"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupRPCClientFlags adds common RPC connection flags to a command
func SetupRPCClientFlags(cmd *cobra.Command) {
	key := "timeout"
	cmd.PersistentFlags().Int(key, 0, WrapString("The maximum time in seconds a single request may block, 0 waits indefinitely"))

	key = "transport-endpoints"
	cmd.PersistentFlags().String(key, "/tmp/dipc.sock", WrapString("The address of the dIPC server. For transports that support failover, multiple endpoints can be specified as a comma-separated list"))

	key = "transport-retries"
	cmd.PersistentFlags().Int(key, 3, WrapString("How many times to retry a request that could not be sent"))

	key = "channel"
	cmd.PersistentFlags().Uint64(key, 1, WrapString("ID of the channel to connect to"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "warn", WrapString("LogLevel is the level at which client logs will be output (debug, info, warn, error)"))
}

// SetupTransformFlags adds the flags enabling the content transforms of an endpoint
func SetupTransformFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("rot13", false, WrapString("rotate ASCII letters of written messages by 13"))
	cmd.Flags().Bool("base64", false, WrapString("base64 encode written messages"))
	cmd.Flags().Bool("reverse", false, WrapString("reverse written messages"))
}

// ApplyTransformFlags enables the transforms selected by SetupTransformFlags on ep
func ApplyTransformFlags(ep channel.IEndpoint) error {
	for _, kind := range []transform.Kind{transform.Reverse, transform.Rot13, transform.Base64} {
		if !viper.GetBool(kind.String()) {
			continue
		}
		if err := ep.SetTransform(kind, true); err != nil {
			return fmt.Errorf("failed to enable %s: %w", kind, err)
		}
	}
	return nil
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dipc")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetClientConfig reads client configuration from viper
func GetClientConfig() *common.ClientConfig {
	conf := &common.ClientConfig{
		TimeoutSecond: viper.GetInt("timeout"),
		RetryCount:    viper.GetInt("transport-retries"),
		Endpoints:     strings.Split(viper.GetString("transport-endpoints"), ","),
	}

	return conf
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	return serializer.New(viper.GetString("serializer"))
}

// GetTransport creates transport based on configuration
func GetTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", viper.GetString("transport"))
	}
}

// GetChannelID retrieves the configured channel ID
func GetChannelID() uint64 {
	return viper.GetUint64("channel")
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
