package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"github.com/ValentinKolb/dFacade/cmd/util"
	"github.com/spf13/cobra"
	"math"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the key-value facade",
		Long:    "Runs set, get and delete benchmarks through the key-value facade. get-cached measures reads served from the cache, get-backend the same reads sent to redis directly.",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfSkip             = make([]string, 0)
)

func init() {
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. set,get-cached)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the set-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := util.V.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	perfLargeValueSizeKB = util.V.GetInt("large-value-size")
	perfKeySpread = util.V.GetInt("keys")
	perfNumThreads = util.V.GetInt("threads")
	perfSkip = strings.Split(util.V.GetString("skip"), ",")

	if perfKeySpread <= 0 {
		return fmt.Errorf("keys must be positive, got %d", perfKeySpread)
	}
	return nil
}

func runPerf(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	fmt.Println("Performance testing tool for the key-value facade")
	fmt.Println()
	fmt.Printf("Threads: %d, Keys: %d, Cache size: %d\n", perfNumThreads, perfKeySpread, util.V.GetInt("cache-size"))
	fmt.Println()

	results := make(map[string]testing.BenchmarkResult)
	largeValue := strings.Repeat("x", perfLargeValueSizeKB*1024)

	bench := func(name string, prepare func(getKey func(int) string), op func(key string) error) {
		results[name] = testing.Benchmark(func(b *testing.B) {
			if shouldSkip(name) {
				return
			}
			getKey, iter := getKeys(name)
			if prepare != nil {
				prepare(getKey)
			}
			b.Cleanup(func() {
				iter(func(k string) {
					if _, err := store.Delete(context.Background(), k); err != nil {
						util.Logger.Warningf("(%s) - error deleting key: %v", name, err)
					}
				})
			})

			b.SetParallelism(perfNumThreads)
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					if err := op(getKey(counter)); err != nil {
						util.Logger.Warningf("(%s) - error: %v", name, err)
					}
					counter++
				}
			})
		})
		printResult(name, results[name])
	}

	fill := func(getKey func(int) string) {
		for i := 0; i < perfKeySpread; i++ {
			if err := store.Set(ctx, getKey(i), "test"); err != nil {
				util.Logger.Warningf("error preparing key: %v", err)
			}
		}
	}

	bench("set", nil, func(key string) error {
		return store.Set(ctx, key, "test")
	})
	bench("set-large", nil, func(key string) error {
		return store.Set(ctx, key, largeValue)
	})
	bench("set-async", nil, func(key string) error {
		_, err := store.SetAsync(ctx, key, "test").Wait()
		return err
	})
	bench("get-cached", fill, func(key string) error {
		_, err := store.Get(ctx, key)
		return err
	})
	bench("get-backend", fill, func(key string) error {
		_, _, err := store.Backend().Get(ctx, key)
		return err
	})
	bench("delete", fill, func(key string) error {
		_, err := store.Delete(ctx, key)
		return err
	})

	stats := store.CacheStats()
	fmt.Println()
	fmt.Printf("cache: hits=%d misses=%d evictions=%d entries=%d\n", stats.Hits, stats.Misses, stats.Evictions, stats.Entries)

	if csvPath := util.V.GetString("csv"); csvPath != "" {
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return err
		}
		fmt.Printf("results written to %s\n", csvPath)
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	for _, skip := range perfSkip {
		if test == strings.TrimSpace(skip) {
			return true
		}
	}
	return false
}

// creates an array of test keys and functions to work with them
func getKeys(prefix string) (func(int) string, func(func(string))) {
	keys := make([]string, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i)
	}

	// Function to get a key by index (with wraparound)
	getKey := func(i int) string {
		return keys[i%perfKeySpread]
	}

	iterateKeys := func(fn func(string)) {
		for _, key := range keys {
			fn(key)
		}
	}

	return getKey, iterateKeys
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1)
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"RedisDB", "CacheSize", "CacheTTL",
		"Threads", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for test, result := range results {
		var nsPerOp, opsPerSec float64
		skipped := "true"
		if result.NsPerOp() != 0 {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strconv.Itoa(util.V.GetInt("db")),
			strconv.Itoa(util.V.GetInt("cache-size")),
			util.V.GetDuration("cache-ttl").String(),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
