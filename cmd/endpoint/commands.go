package endpoint

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ValentinKolb/dIPC/cmd/util"
	"github.com/ValentinKolb/dIPC/lib/channel"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	sendCmd = &cobra.Command{
		Use:   "send [message...]",
		Short: "Opens an endpoint and writes every message as one frame",
		Long:  "Opens an endpoint and writes every message as one frame. The endpoint is closed afterwards, the frames stay in the channel until the peer reads them. The peer endpoint is always the other slot, so a receiver started after the sender closed gets the same slot again; use --hold to keep the endpoint open.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := interruptContext()
			defer cancel()

			ep, err := rpcChannel.Open()
			if err != nil {
				return err
			}
			defer ep.Close()

			if err := util.ApplyTransformFlags(ep); err != nil {
				return err
			}
			fmt.Printf("opened slot %d (%s)\n", ep.Slot(), ep.Flags())

			for _, msg := range args {
				n, err := ep.Write(ctx, []byte(msg))
				if err != nil && n > 0 {
					return fmt.Errorf("message '%s' is committed but its tail is still parked: %w", msg, err)
				}
				if err != nil {
					return fmt.Errorf("trouble writing message '%s': %w", msg, err)
				}
				fmt.Printf("wrote '%s'\n", msg)
			}

			if hold := viper.GetDuration("hold"); hold > 0 {
				select {
				case <-time.After(hold):
				case <-ctx.Done():
				}
			}
			return nil
		},
	}
	recvCmd = &cobra.Command{
		Use:   "recv",
		Short: "Opens an endpoint and reads whole frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := interruptContext()
			defer cancel()

			ep, err := rpcChannel.Open()
			if err != nil {
				return err
			}
			defer ep.Close()

			count := viper.GetInt("count")
			for i := 0; count <= 0 || i < count; i++ {
				msg, err := channel.ReadMessage(ctx, ep, viper.GetInt("chunk"))
				if err != nil {
					return err
				}
				fmt.Printf("read '%s'\n", msg)
			}
			return nil
		},
	}
	pipeCmd = &cobra.Command{
		Use:   "pipe",
		Short: "Writes every line of stdin as a frame and prints every frame received",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := interruptContext()
			defer cancel()

			ep, err := rpcChannel.Open()
			if err != nil {
				return err
			}
			defer ep.Close()

			if err := util.ApplyTransformFlags(ep); err != nil {
				return err
			}

			go func() {
				for {
					msg, err := channel.ReadMessage(ctx, ep, viper.GetInt("chunk"))
					if err != nil {
						return
					}
					fmt.Printf("< %s\n", msg)
				}
			}()

			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				if _, err := ep.Write(ctx, scanner.Bytes()); err != nil {
					return err
				}
			}
			return scanner.Err()
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints buffer occupancy and traffic statistics of the channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := rpcChannel.Info()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
)

func init() {
	util.SetupTransformFlags(sendCmd)
	util.SetupTransformFlags(pipeCmd)

	sendCmd.Flags().Duration("hold", 0, util.WrapString("Keep the endpoint open for this long after the last write"))

	recvCmd.Flags().Int("count", 1, util.WrapString("Number of frames to read, 0 reads until interrupted"))
	for _, cmd := range []*cobra.Command{recvCmd, pipeCmd} {
		cmd.Flags().Int("chunk", channel.DefaultBufferSize, util.WrapString("Size of a single read in bytes"))
	}
}
