package endpoint

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dIPC/cmd/util"
	"github.com/ValentinKolb/dIPC/lib/channel"
	"github.com/ValentinKolb/dIPC/lib/transform"
	"github.com/ValentinKolb/dIPC/rpc/common"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dIPC servers",
		Long:    "Opens both endpoints of the channel and measures frame throughput and round trip latency. The channel must not have an open endpoint.",
		Args:    cobra.NoArgs,
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfSmallValueSize   = 64
	perfLargeValueSizeKB = 64
	perfSkip             = make([]string, 0)
	perfTimers           = metrics.NewRegistry()
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. small,pingpong)"))
	key = "small-value-size"
	perfTestCmd.Flags().Int(key, 64, util.WrapString("How large the frames of the small and transform tests should be (in bytes)"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 64, util.WrapString("How large the frames of the large test should be (in KB)"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfSmallValueSize = viper.GetInt("small-value-size")
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	if perfSmallValueSize < 0 || perfLargeValueSizeKB < 0 {
		return fmt.Errorf("value sizes must not be negative")
	}
	return nil
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for dIPC servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Channel: %d\n", util.GetChannelID())
	fmt.Println()

	ctx, cancel := interruptContext()
	defer cancel()

	a, err := rpcChannel.Open()
	if err != nil {
		return err
	}
	defer a.Close()
	b, err := rpcChannel.Open()
	if err != nil {
		return err
	}
	defer b.Close()

	fmt.Println("staring tests...")

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	small := bytes.Repeat([]byte("x"), perfSmallValueSize)
	large := bytes.Repeat([]byte("x"), perfLargeValueSizeKB*1024)

	for _, test := range []struct {
		name  string
		value []byte
		kinds []transform.Kind
	}{
		{"small", small, nil},
		{"large", large, nil},
		{"transforms", small, []transform.Kind{transform.Reverse, transform.Rot13, transform.Base64}},
	} {
		result := testing.Benchmark(func(bm *testing.B) {
			if shouldSkip(test.name) {
				return
			}
			setTransforms(a, test.kinds, true)
			defer setTransforms(a, test.kinds, false)

			timer := metrics.GetOrRegisterTimer(test.name, perfTimers)
			bm.SetBytes(int64(len(test.value)))
			bm.ResetTimer()

			go func() {
				for i := 0; i < bm.N; i++ {
					if _, err := a.Write(ctx, test.value); err != nil {
						log.Printf("(%s) - error writing frame: %v\n", test.name, err)
						return
					}
				}
			}()

			for i := 0; i < bm.N; i++ {
				start := time.Now()
				if _, err := channel.ReadMessage(ctx, b, 0); err != nil {
					log.Printf("(%s) - error reading frame: %v\n", test.name, err)
					return
				}
				timer.UpdateSince(start)
			}
		})

		results[test.name] = result
		printResult(test.name, result)
	}

	pingPongResult := testing.Benchmark(func(bm *testing.B) {
		if shouldSkip("pingpong") {
			return
		}

		timer := metrics.GetOrRegisterTimer("pingpong", perfTimers)
		bm.ResetTimer()

		for i := 0; i < bm.N; i++ {
			start := time.Now()
			if err := roundTrip(ctx, a, b, small); err != nil {
				log.Printf("(pingpong) - error: %v\n", err)
				return
			}
			timer.UpdateSince(start)
		}
	})

	results["pingpong"] = pingPongResult
	printResult("pingpong", pingPongResult)

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return err
		}
	}

	return nil
}

// roundTrip sends value from a to b and back
func roundTrip(ctx context.Context, a, b channel.IEndpoint, value []byte) error {
	if _, err := a.Write(ctx, value); err != nil {
		return err
	}
	msg, err := channel.ReadMessage(ctx, b, 0)
	if err != nil {
		return err
	}
	if _, err := b.Write(ctx, msg); err != nil {
		return err
	}
	_, err = channel.ReadMessage(ctx, a, 0)
	return err
}

func setTransforms(ep channel.IEndpoint, kinds []transform.Kind, enabled bool) {
	for _, kind := range kinds {
		if err := ep.SetTransform(kind, enabled); err != nil {
			log.Printf("error setting %s: %v\n", kind, err)
		}
	}
}

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if strings.TrimSpace(skip) == test {
			return true
		}
	}
	return false
}

func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Latency distribution of the last run
	latency := ""
	if timer, ok := perfTimers.Get(test).(metrics.Timer); ok {
		snapshot := timer.Snapshot()
		ps := snapshot.Percentiles([]float64{0.5, 0.99})
		latency = fmt.Sprintf("\tp50 %s\tp99 %s", time.Duration(ps[0]), time.Duration(ps[1]))
	}

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec%s\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec, latency)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "P50Ns", "P99Ns", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount",
		"ChannelID", "Serializer", "Transport",
		"SmallValueSize", "LargeValueSizeKB",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string
		var ps = []float64{0, 0}

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
			if timer, ok := perfTimers.Get(test).(metrics.Timer); ok {
				ps = timer.Snapshot().Percentiles([]float64{0.5, 0.99})
			}
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			fmt.Sprintf("%.0f", ps[0]),
			fmt.Sprintf("%.0f", ps[1]),
			skipped,
			strings.Join(config.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.RetryCount),
			strconv.FormatUint(util.GetChannelID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfSmallValueSize),
			strconv.Itoa(perfLargeValueSizeKB),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
