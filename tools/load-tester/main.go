package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// login exchanges credentials for a bearer token so reads are annotated for a
// signed-in caller instead of a guest.
func login(ctx context.Context, baseURL, email, password string) (string, error) {
	body := fmt.Sprintf(`{"email":%q,"password":%q}`, email, password)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/auth/login", strings.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result struct {
		IsSuccess bool `json:"isSuccess"`
		Value     struct {
			Token string `json:"token"`
		} `json:"value"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if !result.IsSuccess {
		msg := resp.Status
		if result.Error != nil {
			msg = result.Error.Message
		}
		return "", fmt.Errorf("login failed: %s", msg)
	}
	return result.Value.Token, nil
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the blog server")
	path := flag.String("path", "/api/posts", "Read endpoint to hit")
	email := flag.String("email", "", "Log in as this user before the run (empty: guest)")
	password := flag.String("password", "User123!", "Password for -email")
	concurrency := flag.Int("c", 10, "Number of concurrent workers")
	duration := flag.Duration("d", 30*time.Second, "Duration of the load test")
	rps := flag.Int("rps", 500, "Requests per second limit")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var bearer string
	if *email != "" {
		tok, err := login(ctx, *baseURL, *email, *password)
		if err != nil {
			log.Fatalf("Could not log in: %v", err)
		}
		bearer = tok
	}

	target := *baseURL + *path
	caller := "guest"
	if bearer != "" {
		caller = *email
	}
	log.Printf("Starting load test on %s (caller: %s)", target, caller)
	log.Printf("Concurrency: %d, Duration: %s, RPS: %d", *concurrency, *duration, *rps)

	var wg sync.WaitGroup
	var successCount, errorCount atomic.Int64
	var totalLatency, responded atomic.Int64

	limiter := rate.NewLimiter(rate.Limit(*rps), 100) // Allow bursts up to 100

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{
				Timeout: 5 * time.Second,
			}

			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					continue // Should not happen
				}
				req.Header.Set("Accept-Encoding", "gzip")
				if bearer != "" {
					req.Header.Set("Authorization", "Bearer "+bearer)
				}

				start := time.Now()
				resp, err := client.Do(req)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					errorCount.Add(1)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				totalLatency.Add(int64(time.Since(start)))
				responded.Add(1)

				if resp.StatusCode == http.StatusOK {
					successCount.Add(1)
				} else {
					errorCount.Add(1)
				}
			}
		}()
	}

	wg.Wait()

	totalRequests := successCount.Load() + errorCount.Load()
	actualRPS := float64(totalRequests) / duration.Seconds()

	log.Println("Load test finished.")
	log.Printf("Total Requests: %d", totalRequests)
	log.Printf("Successful (200 OK): %d", successCount.Load())
	log.Printf("Errors: %d", errorCount.Load())
	log.Printf("Actual RPS: %.2f", actualRPS)
	if n := responded.Load(); n > 0 {
		log.Printf("Mean latency: %s", time.Duration(totalLatency.Load()/n))
	}
}
