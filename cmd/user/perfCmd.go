package user

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/kRPC/cmd/util"
	"github.com/ValentinKolb/kRPC/lib/users"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for the user service",
		Long:    "Sends concurrent requests for every operation and reports latency percentiles and throughput",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfNamePrefix  = "__perf"
	perfNumThreads  = 10
	perfNumRequests = 1000
	perfUserSpread  = 100
	perfSkip        = make([]string, 0)
)

// perfResult is the outcome of a single test
type perfResult struct {
	name     string
	requests int64
	errors   int64
	elapsed  time.Duration
	mean     time.Duration
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	max      time.Duration
}

func (r perfResult) opsPerSec() float64 {
	if r.elapsed <= 0 {
		return 0
	}
	return float64(r.requests) / r.elapsed.Seconds()
}

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Tests to skip (comma separated - e.g. create,list)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent callers"))
	key = "requests"
	perfTestCmd.Flags().Int(key, 1000, util.WrapString("Number of requests per test"))
	key = "users"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many users to create for the read and update tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfNumThreads = max(viper.GetInt("threads"), 1)
	perfNumRequests = max(viper.GetInt("requests"), 1)
	perfUserSpread = max(viper.GetInt("users"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for the user service")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d, Requests per test: %d\n", perfNumThreads, perfNumRequests)
	fmt.Println()

	fmt.Println("preparing users...")
	userIDs, err := prepareUsers()
	if err != nil {
		return err
	}
	defer cleanupUsers(userIDs)

	fmt.Println("starting tests...")

	tests := []struct {
		name string
		op   func(i int) error
	}{
		{"create", func(i int) error {
			id, err := userStore.Create(fmt.Sprintf("%s-create-%d", perfNamePrefix, i), "perf@example.com", 30)
			if err == nil {
				err = userStore.Delete(id)
			}
			return err
		}},
		{"get", func(i int) error {
			_, err := userStore.Get(userIDs[i%len(userIDs)])
			return err
		}},
		{"get-missing", func(i int) error {
			_, err := userStore.Get(fmt.Sprintf("%s-missing-%d", perfNamePrefix, i))
			if errors.Is(err, users.ErrUserNotFound) {
				return nil // expected
			}
			return err
		}},
		{"update", func(i int) error {
			age := 20 + i%50
			_, err := userStore.Update(userIDs[i%len(userIDs)], users.Updates{Age: &age})
			return err
		}},
		{"list", func(int) error {
			_, err := userStore.List()
			return err
		}},
		{"mixed", func(i int) error {
			id := userIDs[i%len(userIDs)]
			var err error
			switch i % 3 {
			case 0:
				_, err = userStore.Get(id)
			case 1:
				age := 20 + i%50
				_, err = userStore.Update(id, users.Updates{Age: &age})
			case 2:
				_, err = userStore.List()
			}
			return err
		}},
	}

	results := make([]perfResult, 0, len(tests))
	for _, test := range tests {
		if shouldSkip(test.name) {
			fmt.Printf("%-20sskipped\n", test.name)
			continue
		}
		result := runTest(test.name, test.op)
		results = append(results, result)
		printResult(result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// runTest calls op perfNumRequests times from perfNumThreads goroutines
func runTest(name string, op func(i int) error) perfResult {
	timer := gometrics.NewTimer()
	defer timer.Stop()
	failures := gometrics.NewCounter()

	var next atomic.Int64
	var wg sync.WaitGroup
	start := time.Now()
	for w := 0; w < perfNumThreads; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(next.Add(1)) - 1
				if i >= perfNumRequests {
					return
				}
				opStart := time.Now()
				err := op(i)
				timer.UpdateSince(opStart)
				if err != nil {
					failures.Inc(1)
					log.Printf("(%s) - error: %v\n", name, err)
				}
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	snapshot := timer.Snapshot()
	ps := snapshot.Percentiles([]float64{0.5, 0.95, 0.99})
	return perfResult{
		name:     name,
		requests: snapshot.Count(),
		errors:   failures.Count(),
		elapsed:  elapsed,
		mean:     time.Duration(snapshot.Mean()),
		p50:      time.Duration(ps[0]),
		p95:      time.Duration(ps[1]),
		p99:      time.Duration(ps[2]),
		max:      time.Duration(snapshot.Max()),
	}
}

// prepareUsers creates the users read and updated by the tests
func prepareUsers() ([]string, error) {
	ids := make([]string, 0, perfUserSpread)
	for i := 0; i < perfUserSpread; i++ {
		id, err := userStore.Create(fmt.Sprintf("%s-user-%d", perfNamePrefix, i), "perf@example.com", 30)
		if err != nil {
			cleanupUsers(ids)
			return nil, fmt.Errorf("failed to create test user: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func cleanupUsers(ids []string) {
	for _, id := range ids {
		if err := userStore.Delete(id); err != nil {
			log.Printf("(cleanup) - error deleting user %s: %v\n", id, err)
		}
	}
}

func shouldSkip(test string) bool {
	return slices.Contains(perfSkip, test)
}

// printResult prints the result of a test in a formatted way
func printResult(r perfResult) {
	fmt.Printf("%-20s%8.0f ops/sec\tmean %-12s p50 %-12s p95 %-12s p99 %-12s max %-12s errors %d/%d\n",
		r.name, r.opsPerSec(), r.mean, r.p50, r.p95, r.p99, r.max, r.errors, r.requests)
}

// writeResultsToCSV writes test results to a CSV file
func writeResultsToCSV(csvPath string, results []perfResult) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	config := util.GetClientConfig()

	// Write header
	header := []string{
		"Test", "Requests", "Errors", "OpsPerSec", "MeanNs", "P50Ns", "P95Ns", "P99Ns", "MaxNs",
		"Brokers", "Partition", "TimeoutMs", "Serializer", "Transport", "Threads",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	for _, r := range results {
		row := []string{
			r.name,
			strconv.FormatInt(r.requests, 10),
			strconv.FormatInt(r.errors, 10),
			fmt.Sprintf("%.0f", r.opsPerSec()),
			strconv.FormatInt(int64(r.mean), 10),
			strconv.FormatInt(int64(r.p50), 10),
			strconv.FormatInt(int64(r.p95), 10),
			strconv.FormatInt(int64(r.p99), 10),
			strconv.FormatInt(int64(r.max), 10),
			strings.Join(config.Broker.Brokers, ";"),
			strconv.Itoa(config.Broker.Partition),
			strconv.Itoa(config.TimeoutMillisecond),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", r.name, err)
		}
	}

	return nil
}
