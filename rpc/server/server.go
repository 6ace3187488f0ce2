package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/dIPC/lib/channel"
	"github.com/ValentinKolb/dIPC/rpc/common"
	"github.com/ValentinKolb/dIPC/rpc/serializer"
	"github.com/ValentinKolb/dIPC/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("rpc")

// serverChannel is a struct that represents a channel hosted by the RPC
// server. It contains the channel and the adapter that handles requests for it
type serverChannel struct {
	Channel channel.IChannel
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		unix.NewUnixDefaultServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *rpcServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &rpcServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		channels:   xsync.NewMapOf[uint64, serverChannel](),
		registry:   NewHandleRegistry(),
		metrics:    metrics.NewSet(),
	}
}

type rpcServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	channels   *xsync.MapOf[uint64, serverChannel]
	registry   *HandleRegistry
	metrics    *metrics.Set

	mu            sync.Mutex
	metricsServer *http.Server
}

// Metrics returns the metric set exposed on the metrics endpoint
func (s *rpcServer) Metrics() *metrics.Set {
	return s.metrics
}

// Registry returns the handle registry of the server
func (s *rpcServer) Registry() *HandleRegistry {
	return s.registry
}

func (s *rpcServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(ctx context.Context, session uint64, channelID uint64, req []byte) []byte {
		start := time.Now()
		var msg common.Message
		var respMsg *common.Message

		// Get appropriate channel
		ch, ok := s.channels.Load(channelID)

		// Case channel does not exist -> error
		if !ok {
			respMsg = common.NewErrorResponse(channel.RetCInternal, fmt.Sprintf("channel %d not found", channelID))
		} else if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(channel.RetCInternal, fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			// Let the adapter handle the request
			respMsg = ch.Adapter.Handle(ctx, session, &msg, ch.Channel)
		}

		s.observe(channelID, msg.MsgType, respMsg, start)

		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize response: %v", err)
			val, _ = s.serializer.Serialize(*common.NewErrorResponse(channel.RetCInternal, fmt.Sprintf("failed to serialize response: %s", err)))
		}
		return val
	}, s.closeSession)
}

// closeSession releases all endpoints a vanished client still held
func (s *rpcServer) closeSession(session uint64) {
	if n := s.registry.CloseSession(session); n > 0 {
		Logger.Infof("closed %d endpoints of session %d", n, session)
	}
}

// observe records request counters and latency
func (s *rpcServer) observe(channelID uint64, msgType common.MessageType, resp *common.Message, start time.Time) {
	code := channel.RetCode(resp.Code)
	s.metrics.GetOrCreateCounter(fmt.Sprintf(`dipc_requests_total{channel="%d",type="%s",code="%s"}`, channelID, msgType, code)).Inc()
	s.metrics.GetOrCreateHistogram(fmt.Sprintf(`dipc_request_duration_seconds{type="%s"}`, msgType)).UpdateDuration(start)
}

func (s *rpcServer) init() error {
	// Init logger
	if s.config.LogLevel != "" {
		if err := common.InitLoggers(s.config.LogLevel); err != nil {
			return err
		}
	}

	Logger.Infof("Created RPC Server")
	Logger.Infof(s.config.String())

	timeout := time.Duration(s.config.TimeoutSecond) * time.Second

	for _, chConfig := range s.config.Channels {
		if _, exists := s.channels.Load(chConfig.ChannelID); exists {
			return fmt.Errorf("duplicate channel id %d", chConfig.ChannelID)
		}

		ch, err := channel.New(chConfig.Config)
		if err != nil {
			return fmt.Errorf("failed to create channel %d: %w", chConfig.ChannelID, err)
		}
		s.channels.Store(chConfig.ChannelID, serverChannel{
			Channel: ch,
			Adapter: NewIChannelServerAdapter(chConfig.ChannelID, s.registry, timeout),
		})
		s.registerChannelGauges(chConfig.ChannelID, ch)

		Logger.Infof("created channel %d with %d byte buffers", chConfig.ChannelID, ch.Config().BufferSize)
	}

	s.metrics.GetOrCreateGauge("dipc_open_handles", func() float64 {
		return float64(s.registry.Len())
	})
	s.metrics.GetOrCreateGauge("dipc_tracked_calls", func() float64 {
		return float64(s.registry.Calls())
	})

	Logger.Infof("dIPC setup completed successfully")

	// Configure the transport layer
	s.registerTransportHandler()

	return nil
}

// registerChannelGauges exposes the occupancy of both buffers of ch
func (s *rpcServer) registerChannelGauges(channelID uint64, ch *channel.DuplexChannel) {
	id := strconv.FormatUint(channelID, 10)
	for i, name := range []string{"bufA", "bufB"} {
		s.metrics.GetOrCreateGauge(fmt.Sprintf(`dipc_buffer_used_bytes{channel="%s",buffer="%s"}`, id, name), func() float64 {
			info, _ := ch.Info()
			return float64(info.Directions[i].UsedBytes)
		})
	}
	s.metrics.GetOrCreateGauge(fmt.Sprintf(`dipc_open_endpoints{channel="%s"}`, id), func() float64 {
		return float64(ch.OpenEndpoints())
	})
}

// serveMetrics exposes the metric set in the prometheus text format
func (s *rpcServer) serveMetrics() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", func(w http.ResponseWriter, _ *http.Request) {
		s.metrics.WritePrometheus(w)
	})

	server := &http.Server{Addr: s.config.MetricsEndpoint, Handler: mux}
	s.mu.Lock()
	s.metricsServer = server
	s.mu.Unlock()

	Logger.Infof("Serving metrics on %s/metrics", s.config.MetricsEndpoint)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		Logger.Errorf("metrics endpoint failed: %v", err)
	}
}

// Serve starts the RPC server
// This function will also initialize the server plus the channels and start the transport layer
func (s *rpcServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	if s.config.MetricsEndpoint != "" {
		go s.serveMetrics()
	}
	return s.transport.Listen(s.config)
}

// Shutdown stops the transport and the metrics endpoint
func (s *rpcServer) Shutdown() error {
	s.mu.Lock()
	metricsServer := s.metricsServer
	s.mu.Unlock()
	if metricsServer != nil {
		_ = metricsServer.Close()
	}
	return s.transport.Shutdown()
}
