package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
)

type SimConfig struct {
	APIBaseURL string
	Rounds     int
	Contenders int
	Workers    int
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Request OperationMetrics
	Confirm OperationMetrics
	Verify  OperationMetrics
}

type Simulator struct {
	config     SimConfig
	client     *http.Client
	metrics    Metrics
	runID      int64
	violations int64
}

type apiAppointment struct {
	ID            int64      `json:"id"`
	ProviderID    int64      `json:"provider_id"`
	ConfirmedTime *time.Time `json:"confirmed_time"`
	State         string     `json:"state"`
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: rounds=%d contenders=%d workers=%d api=%s",
		cfg.Rounds, cfg.Contenders, cfg.Workers, cfg.APIBaseURL)

	sim := &Simulator{
		config: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		// provider ids unique to this run so earlier runs cannot collide
		runID: time.Now().Unix() % 1_000_000,
	}

	sim.Run(context.Background())
	sim.PrintReport()

	if atomic.LoadInt64(&sim.violations) > 0 {
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	_ = godotenv.Load()

	return SimConfig{
		APIBaseURL: getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Rounds:     getInt("SIM_ROUNDS", 50),
		Contenders: getInt("SIM_CONTENDERS", 8),
		Workers:    getInt("SIM_WORKERS", 4),
	}
}

func validateConfig(cfg SimConfig) error {
	if cfg.Rounds <= 0 {
		return fmt.Errorf("SIM_ROUNDS must be > 0")
	}
	if cfg.Contenders < 2 {
		return fmt.Errorf("SIM_CONTENDERS must be >= 2")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	return nil
}

// Run executes the rounds on a pool of workers. Each round races Contenders
// confirmations of the same provider slot against each other.
func (s *Simulator) Run(ctx context.Context) {
	rounds := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for round := range rounds {
				s.race(ctx, round)
			}
		}()
	}

	for round := 0; round < s.config.Rounds; round++ {
		rounds <- round
	}
	close(rounds)

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) race(ctx context.Context, round int) {
	providerID := s.runID*1000 + int64(round) + 1
	slot := time.Now().UTC().Truncate(time.Hour).Add(time.Duration(24+round) * time.Hour)

	ids := make([]int64, 0, s.config.Contenders)
	for i := 0; i < s.config.Contenders; i++ {
		requesterID := int64(i + 1)
		id, ok := s.requestAppointment(ctx, requesterID, providerID, slot)
		if ok {
			ids = append(ids, id)
		}
	}
	if len(ids) < 2 {
		log.Printf("round %d: not enough appointments created, skipping", round)
		return
	}

	var (
		wg        sync.WaitGroup
		start     = make(chan struct{})
		successes int64
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			<-start
			if s.confirm(ctx, providerID, id, slot) {
				atomic.AddInt64(&successes, 1)
			}
		}(id)
	}
	close(start)
	wg.Wait()

	if successes > 1 {
		atomic.AddInt64(&s.violations, 1)
		log.Printf("round %d: %d confirmations succeeded for provider %d at %s", round, successes, providerID, slot)
	}
	s.verify(ctx, round, providerID, slot)
}

func (s *Simulator) requestAppointment(ctx context.Context, requesterID, providerID int64, at time.Time) (int64, bool) {
	body, _ := json.Marshal(map[string]any{
		"requester_id":   requesterID,
		"provider_id":    providerID,
		"requested_time": at,
		"reason":         "simulated load",
	})

	start := time.Now()
	resp, err := s.do(ctx, http.MethodPost, "/appointments", body, requesterID, "requester")
	latency := time.Since(start)

	if err != nil {
		s.metrics.Request.Record(latency, false, false)
		return 0, false
	}
	defer resp.Body.Close()

	var appt apiAppointment
	ok := resp.StatusCode == http.StatusCreated && json.NewDecoder(resp.Body).Decode(&appt) == nil
	s.metrics.Request.Record(latency, ok, false)
	return appt.ID, ok
}

func (s *Simulator) confirm(ctx context.Context, providerID, id int64, at time.Time) bool {
	body, _ := json.Marshal(map[string]any{"confirmed_time": at})

	start := time.Now()
	resp, err := s.do(ctx, http.MethodPost, fmt.Sprintf("/appointments/%d/confirm", id), body, providerID, "provider")
	latency := time.Since(start)

	success := false
	conflict := false
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			success = true
		} else if resp.StatusCode == http.StatusConflict {
			conflict = true
		}
	}

	s.metrics.Confirm.Record(latency, success, conflict)
	return success
}

// verify reads back the provider's confirmed appointments and checks that at
// most one holds the raced slot.
func (s *Simulator) verify(ctx context.Context, round int, providerID int64, slot time.Time) {
	path := fmt.Sprintf("/appointments?provider_id=%d&state=confirmed&limit=200", providerID)

	start := time.Now()
	resp, err := s.do(ctx, http.MethodGet, path, nil, providerID, "provider")
	latency := time.Since(start)
	if err != nil {
		s.metrics.Verify.Record(latency, false, false)
		return
	}
	defer resp.Body.Close()

	var list struct {
		Appointments []apiAppointment `json:"appointments"`
	}
	if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&list) != nil {
		s.metrics.Verify.Record(latency, false, false)
		return
	}

	holders := 0
	for _, a := range list.Appointments {
		if a.ConfirmedTime != nil && a.ConfirmedTime.Equal(slot) {
			holders++
		}
	}
	if holders > 1 {
		atomic.AddInt64(&s.violations, 1)
		log.Printf("round %d: provider %d holds %d confirmed appointments at %s", round, providerID, holders, slot)
	}
	s.metrics.Verify.Record(latency, holders <= 1, false)
}

func (s *Simulator) do(ctx context.Context, method, path string, body []byte, actorID int64, role string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Actor-ID", strconv.FormatInt(actorID, 10))
	req.Header.Set("X-Actor-Role", role)
	return s.client.Do(req)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Rounds: %d\n", s.config.Rounds)
	fmt.Printf("Contenders per slot: %d\n", s.config.Contenders)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Request", &s.metrics.Request)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Verify", &s.metrics.Verify)

	if v := atomic.LoadInt64(&s.violations); v > 0 {
		fmt.Printf("EXCLUSIVITY VIOLATIONS: %d\n", v)
	} else {
		fmt.Println("Exclusivity held: every raced slot has at most one confirmed appointment")
	}
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	errCount := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if errCount > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", errCount, float64(errCount)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
