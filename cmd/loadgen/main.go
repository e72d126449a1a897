// loadgen hammers one campaign's issuance endpoint with many concurrent
// users and verifies the stock bound afterwards: successful issuances
// must equal the stock consumed, and never exceed the total quantity.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// PerfResult gathers aggregated metrics for the test run.
// Atomic counters are used to avoid lock-contention on hot paths.
// LatencySum & P95Latency are in nanoseconds.
//
// P95Latency is maintained via a lightweight reservoir sampler.
type PerfResult struct {
	TotalRequests int64
	SuccessCount  int64
	OutOfStock    int64
	AlreadyIssued int64
	Contention    int64
	ErrorCount    int64
	LatencySum    int64
	P95Latency    int64
}

const (
	fixedWorkers   = 50
	fixedRPSTarget = 700
	fixedDuration  = 30 * time.Second
	defaultTimeout = 30 * time.Second
)

func main() {
	baseURL := getenv("LOADGEN_BASE_URL", "http://localhost:8080")
	campaignID, err := strconv.ParseInt(getenv("LOADGEN_CAMPAIGN_ID", "1"), 10, 64)
	if err != nil || campaignID <= 0 {
		fmt.Fprintf(os.Stderr, "invalid campaign id\n")
		os.Exit(1)
	}

	rps := fixedRPSTarget
	duration := fixedDuration
	workers := fixedWorkers

	// ─── HTTP Client & Transport ─────────────────────────────────
	transport := &http.Transport{
		MaxIdleConns:        workers * 4,
		MaxIdleConnsPerHost: workers * 4,
		IdleConnTimeout:     90 * time.Second,
	}
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   defaultTimeout,
	}

	// ─── Banner ──────────────────────────────────────────────────
	fmt.Println("==========================================")
	fmt.Println("FCFS issuance load test")
	fmt.Println("==========================================")
	fmt.Printf("base URL    : %s\n", baseURL)
	fmt.Printf("campaign ID : %d\n", campaignID)
	fmt.Printf("RPS         : %d\n", rps)
	fmt.Printf("duration    : %v\n", duration)
	fmt.Println("==========================================")

	// ─── Rate limiter & context ─────────────────────────────────
	burst := rps / workers
	if burst < 1 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	var result PerfResult
	var wg sync.WaitGroup

	// Each request issues for a distinct user so the duplicate ledger
	// never caps successes below the stock bound.
	var nextUserID int64

	// latencyChan collects latencies for P95 estimation.
	latencyChan := make(chan time.Duration, 4096)
	go trackP95(latencyChan, &result)

	// ─── Workers ────────────────────────────────────────────────
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil { // context cancelled → exit
					return
				}
				userID := atomic.AddInt64(&nextUserID, 1)
				doRequest(httpClient, baseURL, campaignID, userID, &result, latencyChan)
			}
		}()
	}

	start := time.Now()
	<-ctx.Done() // wait for duration

	// ─── Cleanup ────────────────────────────────────────────────
	wg.Wait()
	close(latencyChan)

	totalDur := time.Since(start)

	// ─── Report ─────────────────────────────────────────────────
	var avgLatency time.Duration
	if result.SuccessCount > 0 {
		avgLatency = time.Duration(result.LatencySum / result.SuccessCount)
	}

	fmt.Println("==========================================")
	fmt.Println("Results")
	fmt.Println("==========================================")
	fmt.Printf("elapsed          : %.2fs\n", totalDur.Seconds())
	fmt.Printf("total requests   : %d\n", result.TotalRequests)
	fmt.Printf("issued           : %d\n", result.SuccessCount)
	fmt.Printf("out of stock     : %d\n", result.OutOfStock)
	fmt.Printf("already issued   : %d\n", result.AlreadyIssued)
	fmt.Printf("lock contention  : %d\n", result.Contention)
	fmt.Printf("errors           : %d\n", result.ErrorCount)
	fmt.Printf("actual RPS       : %.2f\n", float64(result.TotalRequests)/totalDur.Seconds())
	fmt.Printf("avg latency      : %v\n", avgLatency)
	fmt.Printf("p95 latency      : %v\n", time.Duration(result.P95Latency))
	fmt.Println("==========================================")

	// ─── Stock Bound Check ──────────────────────────────────────
	if err := verifyStockBound(httpClient, baseURL, campaignID, result.SuccessCount); err != nil {
		fmt.Printf("stock bound check FAILED: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("stock bound check passed")
}

type issuedCoupon struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	CouponID   int64  `json:"coupon_id"`
	Status     string `json:"status"`
	ExpiryDate string `json:"expiry_date"`
}

// doRequest performs a single issuance request and classifies the outcome.
func doRequest(client *http.Client, baseURL string, campaignID, userID int64, result *PerfResult, latencyChan chan<- time.Duration) {
	// Use independent context to avoid cancellation when test ends
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	body, _ := json.Marshal(map[string]int64{"user_id": userID})
	url := fmt.Sprintf("%s/v1/campaigns/%d/issue", baseURL, campaignID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		atomic.AddInt64(&result.ErrorCount, 1)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	atomic.AddInt64(&result.TotalRequests, 1)

	resp, err := client.Do(req)
	latency := time.Since(start)

	if err != nil {
		atomic.AddInt64(&result.ErrorCount, 1)
		return
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		var coupon issuedCoupon
		if err := json.NewDecoder(resp.Body).Decode(&coupon); err != nil || coupon.Status != "AVAILABLE" {
			atomic.AddInt64(&result.ErrorCount, 1)
			return
		}
		atomic.AddInt64(&result.SuccessCount, 1)
		atomic.AddInt64(&result.LatencySum, latency.Nanoseconds())
		select {
		case latencyChan <- latency:
		default:
		}
	case http.StatusBadRequest:
		// Out-of-stock and already-issued both map to 400; distinct
		// users make already-issued near impossible, so classify by
		// message.
		var payload struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		if payload.Error == "coupon already issued to this user" {
			atomic.AddInt64(&result.AlreadyIssued, 1)
		} else {
			atomic.AddInt64(&result.OutOfStock, 1)
		}
	case http.StatusConflict:
		atomic.AddInt64(&result.Contention, 1)
	default:
		atomic.AddInt64(&result.ErrorCount, 1)
	}
}

// trackP95 maintains a best-effort rolling P95 latency estimation.
func trackP95(latencies <-chan time.Duration, result *PerfResult) {
	const size = 1000
	buf := make([]int64, 0, size)

	for lat := range latencies {
		if len(buf) < size {
			buf = append(buf, lat.Nanoseconds())
		} else {
			// Replace random element (simple reservoir sampling)
			if idx := time.Now().UnixNano() % int64(size); idx < int64(size/10) {
				buf[idx] = lat.Nanoseconds()
			}
		}

		// Update P95 periodically
		if len(buf) >= 100 && len(buf)%100 == 0 {
			copyBuf := make([]int64, len(buf))
			copy(copyBuf, buf)
			quickSort(copyBuf)
			p95Index := int(float64(len(copyBuf)) * 0.95)
			if p95Index >= len(copyBuf) {
				p95Index = len(copyBuf) - 1
			}
			atomic.StoreInt64(&result.P95Latency, copyBuf[p95Index])
		}
	}
}

// quickSort sorts the array in ascending order
func quickSort(arr []int64) {
	if len(arr) < 2 {
		return
	}

	left, right := 0, len(arr)-1
	pivot := len(arr) / 2

	arr[pivot], arr[right] = arr[right], arr[pivot]

	for i := range arr {
		if arr[i] < arr[right] {
			arr[left], arr[i] = arr[i], arr[left]
			left++
		}
	}

	arr[left], arr[right] = arr[right], arr[left]

	quickSort(arr[:left])
	quickSort(arr[left+1:])
}

// verifyStockBound checks the campaign's remaining stock against the
// number of successful issuances observed by the test.
func verifyStockBound(client *http.Client, baseURL string, campaignID, issued int64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	url := fmt.Sprintf("%s/v1/campaigns/%d", baseURL, campaignID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to get campaign: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d fetching campaign", resp.StatusCode)
	}

	var campaign struct {
		TotalQuantity int64 `json:"total_quantity"`
		StockQuantity int64 `json:"stock_quantity"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&campaign); err != nil {
		return fmt.Errorf("failed to decode campaign: %w", err)
	}

	fmt.Printf("campaign ID      : %d\n", campaignID)
	fmt.Printf("total quantity   : %d\n", campaign.TotalQuantity)
	fmt.Printf("remaining stock  : %d\n", campaign.StockQuantity)
	fmt.Printf("issued (test)    : %d\n", issued)

	if campaign.StockQuantity < 0 {
		return fmt.Errorf("negative stock: %d", campaign.StockQuantity)
	}
	if issued > campaign.TotalQuantity {
		return fmt.Errorf("over-issuance: issued=%d > total=%d", issued, campaign.TotalQuantity)
	}
	if consumed := campaign.TotalQuantity - campaign.StockQuantity; consumed != issued {
		return fmt.Errorf("stock mismatch: consumed=%d, issued=%d", consumed, issued)
	}

	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
