package demo

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ValentinKolb/dIPC/cmd/util"
	"github.com/ValentinKolb/dIPC/lib/channel"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// DemoCommands represents the demo command group
	DemoCommands = &cobra.Command{
		Use:   "demo",
		Short: "Run two endpoints of an in-process channel against each other",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return util.BindCommandFlags(cmd)
		},
	}
	duplexCmd = &cobra.Command{
		Use:   "duplex MESSAGE_ONE [MESSAGE_TWO ...]",
		Short: "Two peers take turns writing their half of the messages and reading the other half",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runDuplex,
	}
	producerConsumerCmd = &cobra.Command{
		Use:   "pc MESSAGE_ONE [MESSAGE_TWO ...]",
		Short: "A producer writes all messages, a consumer reads them",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runProducerConsumer,
	}
)

func init() {
	DemoCommands.PersistentFlags().Int("buffer-size", channel.DefaultBufferSize, util.WrapString("Size of each ring buffer of the channel in bytes"))
	util.SetupTransformFlags(duplexCmd)
	util.SetupTransformFlags(producerConsumerCmd)

	DemoCommands.AddCommand(duplexCmd)
	DemoCommands.AddCommand(producerConsumerCmd)
}

// openChannel creates the in-process channel both peers share
func openChannel() (*channel.DuplexChannel, error) {
	return channel.New(channel.Config{BufferSize: viper.GetInt("buffer-size")})
}

// peer is one side of a demo
type peer struct {
	name string
	ep   channel.IEndpoint
	out  *sync.Mutex
}

func (p *peer) printf(format string, args ...any) {
	p.out.Lock()
	defer p.out.Unlock()
	fmt.Printf("%s: "+format+"\n", append([]any{p.name}, args...)...)
}

func (p *peer) write(ctx context.Context, msg string) error {
	n, err := p.ep.Write(ctx, []byte(msg))
	if err != nil {
		if n > 0 {
			p.printf("message '%s' is committed, its tail follows with the next message", msg)
		} else {
			p.printf("trouble writing message '%s'", msg)
		}
		return err
	}
	p.printf("wrote '%s'", msg)
	return nil
}

func (p *peer) read(ctx context.Context) error {
	msg, err := channel.ReadMessage(ctx, p.ep, 0)
	if err != nil {
		return err
	}
	p.printf("read '%s'", msg)
	return nil
}

// runPeers opens one endpoint per peer and runs fn for both concurrently
func runPeers(names [2]string, fn func(ctx context.Context, self *peer, index int) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ch, err := openChannel()
	if err != nil {
		return err
	}

	var out sync.Mutex
	peers := make([]*peer, 0, 2)
	for _, name := range names {
		ep, err := ch.Open()
		if err != nil {
			return err
		}
		defer ep.Close()
		if err := util.ApplyTransformFlags(ep); err != nil {
			return err
		}
		peers = append(peers, &peer{name: name, ep: ep, out: &out})
	}

	errs := make(chan error, len(peers))
	for i, p := range peers {
		go func() {
			err := fn(ctx, p, i)
			if err != nil {
				// unblock the other peer
				cancel()
			}
			errs <- err
		}()
	}

	var firstErr error
	for range peers {
		if err := <-errs; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func runDuplex(_ *cobra.Command, args []string) error {
	second := len(args) / 2
	first := len(args) - second
	halves := [2][]string{args[:first], args[first:]}

	return runPeers([2]string{"peer 0", "peer 1"}, func(ctx context.Context, self *peer, index int) error {
		own := halves[index]
		expected := len(halves[1-index])
		for _, msg := range own {
			if err := self.write(ctx, msg); err != nil {
				return err
			}
			if expected > 0 {
				if err := self.read(ctx); err != nil {
					return err
				}
				expected--
			}
		}
		for ; expected > 0; expected-- {
			if err := self.read(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func runProducerConsumer(_ *cobra.Command, args []string) error {
	return runPeers([2]string{"producer", "consumer"}, func(ctx context.Context, self *peer, index int) error {
		if index == 0 {
			for _, msg := range args {
				if err := self.write(ctx, msg); err != nil {
					return err
				}
			}
			return nil
		}
		for range args {
			if err := self.read(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}
