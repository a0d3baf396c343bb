// Benchmark tool for testing Kestrel against labeled incident data.
//
// Usage:
//   go run cmd/kestrel-bench/main.go -csv /path/to/incidents.csv -url http://localhost:8080
//
// This tool:
//  1. Reads labeled incident data (with high-risk labels)
//  2. Sends each incident context to Kestrel for assessment
//  3. Compares the predicted probability with the actual label
//  4. Calculates precision, recall, F1-score, and confusion matrix
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/campus-safety/kestrel/internal/domain"
	"github.com/campus-safety/kestrel/internal/ingest"
)

// AssessRequest is the Kestrel API request format.
type AssessRequest struct {
	Hour      int     `json:"hour"`
	IsWeekend bool    `json:"isWeekend"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	VictimAge float64 `json:"victimAge"`
}

// AssessResponse is the subset of the Kestrel API response we score on.
type AssessResponse struct {
	ID          string      `json:"id"`
	Probability float64     `json:"probability"`
	Tier        domain.Tier `json:"tier"`
}

// Metrics tracks benchmark results.
type Metrics struct {
	TruePositives  int64 // High-risk scored above threshold
	FalsePositives int64 // Low-risk scored above threshold
	TrueNegatives  int64 // Low-risk scored below threshold
	FalseNegatives int64 // High-risk scored below threshold (missed!)

	TotalProcessed int64
	TotalHighRisk  int64
	TotalLowRisk   int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

func main() {
	csvPath := flag.String("csv", "", "Path to labeled incident CSV file")
	synthetic := flag.Int("synthetic", 0, "Generate N synthetic incidents instead of reading a CSV")
	baseURL := flag.String("url", "http://localhost:8080", "Kestrel base URL")
	tenantID := flag.String("tenant", "benchmark-test", "Tenant ID for requests")
	limit := flag.Int("limit", 10000, "Maximum incidents to process (0 = all)")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	threshold := flag.Float64("threshold", 0.5, "Probability threshold for a positive prediction")
	seed := flag.Int64("seed", 1, "Seed for synthetic data")
	verbose := flag.Bool("verbose", false, "Print each incident result")
	flag.Parse()

	if *csvPath == "" && *synthetic <= 0 {
		fmt.Println("Usage: kestrel-bench -csv /path/to/incidents.csv [-url http://localhost:8080]")
		fmt.Println("\nFlags:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║         KESTREL BENCHMARK - High-Risk Incident Scoring        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nKestrel URL: %s\n", *baseURL)
	fmt.Printf("Tenant ID:   %s\n", *tenantID)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Printf("Limit:       %d\n", *limit)
	fmt.Printf("Threshold:   %.2f\n", *threshold)
	fmt.Println()

	// Check Kestrel is running
	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Kestrel not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Kestrel is running:")
		fmt.Println("  go run cmd/kestrel/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Kestrel is healthy")

	// Load labeled incidents
	var (
		ds  *domain.Dataset
		err error
	)
	if *csvPath != "" {
		fmt.Printf("\nReading incident data from %s...\n", *csvPath)
		ds, err = ingest.LoadCSV(*csvPath)
		if err != nil {
			fmt.Printf("ERROR: Failed to read CSV: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Printf("\nGenerating %d synthetic incidents...\n", *synthetic)
		ds = ingest.Synthetic(*synthetic, *seed)
	}

	incidents := ds.Incidents
	if *limit > 0 && len(incidents) > *limit {
		incidents = incidents[:*limit]
	}
	fmt.Printf("✓ Loaded %d incidents\n", len(incidents))

	highRisk := 0
	for i := range incidents {
		if incidents[i].HighRisk {
			highRisk++
		}
	}
	fmt.Printf("  - High risk: %d (%.2f%%)\n", highRisk, 100*float64(highRisk)/float64(len(incidents)))
	fmt.Printf("  - Low risk:  %d (%.2f%%)\n", len(incidents)-highRisk, 100*float64(len(incidents)-highRisk)/float64(len(incidents)))

	// Run benchmark
	fmt.Printf("\nRunning benchmark with %d workers...\n", *workers)
	startTime := time.Now()
	metrics := runBenchmark(incidents, *baseURL, *tenantID, *workers, *threshold, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func runBenchmark(incidents []domain.Incident, baseURL, tenantID string, numWorkers int, threshold float64, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan domain.Incident, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for inc := range work {
				start := time.Now()
				result, err := assessIncident(client, baseURL, tenantID, inc)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					atomic.AddInt64(&metrics.TotalErrors, 1)
					if verbose {
						fmt.Printf("ERROR: %s -> %v\n", inc.ID, err)
					}
					continue
				}

				if inc.HighRisk {
					atomic.AddInt64(&metrics.TotalHighRisk, 1)
				} else {
					atomic.AddInt64(&metrics.TotalLowRisk, 1)
				}

				predicted := result.Probability > threshold
				actual := inc.HighRisk

				if predicted && actual {
					atomic.AddInt64(&metrics.TruePositives, 1)
				} else if predicted && !actual {
					atomic.AddInt64(&metrics.FalsePositives, 1)
				} else if !predicted && !actual {
					atomic.AddInt64(&metrics.TrueNegatives, 1)
				} else { // !predicted && actual
					atomic.AddInt64(&metrics.FalseNegatives, 1)
				}

				if verbose {
					status := "✓"
					if predicted != actual {
						status = "✗"
					}
					fmt.Printf("%s hour=%02d weekend=%-5v | %-25s | HighRisk: %-5v | Kestrel: %-8s (%.2f)\n",
						status,
						inc.Hour,
						inc.IsWeekend,
						inc.Category,
						inc.HighRisk,
						result.Tier,
						result.Probability,
					)
				}
			}
		}()
	}

	for _, inc := range incidents {
		work <- inc
	}
	close(work)

	wg.Wait()

	return metrics
}

func assessIncident(client *http.Client, baseURL, tenantID string, inc domain.Incident) (*AssessResponse, error) {
	req := AssessRequest{
		Hour:      inc.Hour,
		IsWeekend: inc.IsWeekend,
		Latitude:  inc.Latitude,
		Longitude: inc.Longitude,
		VictimAge: inc.VictimAge,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/v1/assess", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result AssessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      BENCHMARK RESULTS                        ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 DATASET STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Total High Risk:  %d\n", m.TotalHighRisk)
	fmt.Printf("   Total Low Risk:   %d\n", m.TotalLowRisk)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	fmt.Printf("\n📈 CONFUSION MATRIX\n")
	fmt.Println("                        Predicted")
	fmt.Println("                    HIGH        LOW")
	fmt.Println("              ┌──────────┬──────────┐")
	fmt.Printf("   Actual  H  │ %8d │ %8d │  (TP, FN)\n", m.TruePositives, m.FalseNegatives)
	fmt.Println("              ├──────────┼──────────┤")
	fmt.Printf("           L  │ %8d │ %8d │  (FP, TN)\n", m.FalsePositives, m.TrueNegatives)
	fmt.Println("              └──────────┴──────────┘")

	precision := float64(0)
	if m.TruePositives+m.FalsePositives > 0 {
		precision = float64(m.TruePositives) / float64(m.TruePositives+m.FalsePositives)
	}

	recall := float64(0)
	if m.TruePositives+m.FalseNegatives > 0 {
		recall = float64(m.TruePositives) / float64(m.TruePositives+m.FalseNegatives)
	}

	f1 := float64(0)
	if precision+recall > 0 {
		f1 = 2 * (precision * recall) / (precision + recall)
	}

	accuracy := float64(0)
	total := m.TruePositives + m.TrueNegatives + m.FalsePositives + m.FalseNegatives
	if total > 0 {
		accuracy = float64(m.TruePositives+m.TrueNegatives) / float64(total)
	}

	fmt.Printf("\n🎯 DETECTION METRICS\n")
	fmt.Printf("   Precision:  %.4f  (of high calls, how many were actually high risk)\n", precision)
	fmt.Printf("   Recall:     %.4f  (of high-risk incidents, how many did we catch)\n", recall)
	fmt.Printf("   F1-Score:   %.4f  (harmonic mean of precision & recall)\n", f1)
	fmt.Printf("   Accuracy:   %.4f  (overall correct predictions)\n", accuracy)

	fmt.Printf("\n🔍 DETECTION ANALYSIS\n")
	if m.TotalHighRisk > 0 {
		detectionRate := float64(m.TruePositives) / float64(m.TotalHighRisk) * 100
		missRate := float64(m.FalseNegatives) / float64(m.TotalHighRisk) * 100
		fmt.Printf("   High Risk Caught:  %d / %d (%.2f%%)\n", m.TruePositives, m.TotalHighRisk, detectionRate)
		fmt.Printf("   High Risk Missed:  %d / %d (%.2f%%) ⚠️\n", m.FalseNegatives, m.TotalHighRisk, missRate)
	}
	if m.TotalLowRisk > 0 {
		falseAlarmRate := float64(m.FalsePositives) / float64(m.TotalLowRisk) * 100
		fmt.Printf("   False Alarms:      %d / %d (%.2f%%)\n", m.FalsePositives, m.TotalLowRisk, falseAlarmRate)
	}

	fmt.Printf("\n⏱️  PERFORMANCE\n")
	fmt.Printf("   Total Duration:   %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		avgMs := float64(m.ProcessingTimeMs) / float64(m.TotalProcessed)
		qps := float64(m.TotalProcessed) / duration.Seconds()
		fmt.Printf("   Avg Latency:      %.2f ms\n", avgMs)
		fmt.Printf("   Throughput:       %.2f assessments/sec\n", qps)
	}

	fmt.Println()
}
