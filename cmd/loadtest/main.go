package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// Result records one HTTP outcome for aggregation.
type Result struct {
	Status int
	Body   string
	Err    error
}

func main() {
	baseURL := flag.String("base", "http://localhost:8080", "server base url")
	productID := flag.Uint("product", 1, "product id")
	preload := flag.Bool("preload", true, "preload ledger stock before test")
	adminToken := flag.String("admin-token", "dev-admin-token", "admin token for preload endpoint")
	stockCheck := flag.Bool("stock", true, "check ledger stock after test")

	// Oversell probe: many operators racing for the same product.
	nOrders := flag.Int("orders", 200, "concurrent order creations")
	concurrency := flag.Int("c", 50, "max concurrency")
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	if *preload {
		// Seed the ledger from the catalog first so a missing stock key
		// doesn't skew the run.
		if err := doPOST(client, fmt.Sprintf("%s/api/stock/preload/%d", *baseURL, *productID), nil, map[string]string{
			"X-Admin-Token": *adminToken,
		}); err != nil {
			panic(fmt.Sprintf("preload failed: %v", err))
		}
		fmt.Println("preload ok")
	}

	fmt.Printf("start oversell test: product=%d orders=%d concurrency=%d\n", *productID, *nOrders, *concurrency)
	results := runCreate(client, *baseURL, *productID, *nOrders, *concurrency)
	printSummary("oversell", results)

	if *stockCheck {
		stock, err := getStock(client, *baseURL, *productID)
		if err != nil {
			fmt.Println("stock check err:", err)
		} else {
			fmt.Println("final ledger stock:", stock)
			if stock < 0 {
				fmt.Println("OVERSOLD: ledger went negative")
			}
		}
	}

	// Rate-limit probe: one acting user hammering the create endpoint.
	fmt.Println("\nstart rate limit test: same user, 50 requests, concurrency 50")
	results2 := runCreateSameUser(client, *baseURL, *productID, "loadtest-user", 50, 50)
	printSummary("rate_limit", results2)
}

type createReq struct {
	StatusCode  uint       `json:"status_code"`
	UserID      string     `json:"user_id"`
	Observation string     `json:"observation"`
	Items       []itemsReq `json:"items"`
}

type itemsReq struct {
	ProductID uint    `json:"product_id"`
	Qty       int     `json:"qty"`
	Price     float64 `json:"price"`
}

func runCreate(client *http.Client, baseURL string, productID uint, total int, concurrency int) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			req := createReq{
				StatusCode:  1,
				UserID:      fmt.Sprintf("customer-%d", idx+1),
				Observation: "loadtest",
				Items:       []itemsReq{{ProductID: productID, Qty: 1, Price: 100}},
			}
			results[idx] = createOnce(client, baseURL, req)
		}(i)
	}

	wg.Wait()
	return results
}

func runCreateSameUser(client *http.Client, baseURL string, productID uint, userID string, total int, concurrency int) []Result {
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	results := make([]Result, total)

	for i := 0; i < total; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()

			req := createReq{
				StatusCode:  1,
				UserID:      userID,
				Observation: "loadtest",
				Items:       []itemsReq{{ProductID: productID, Qty: 1, Price: 100}},
			}
			results[idx] = createOnce(client, baseURL, req)
		}(i)
	}

	wg.Wait()
	return results
}

func createOnce(client *http.Client, baseURL string, req createReq) Result {
	b, _ := json.Marshal(req)
	url := fmt.Sprintf("%s/api/orders", baseURL)
	httpReq, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return Result{Err: err}
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return Result{Status: resp.StatusCode, Body: string(body)}
}

// printSummary aggregates the status code distribution.
func printSummary(name string, results []Result) {
	count := map[int]int{}
	errCount := 0
	for _, r := range results {
		if r.Err != nil {
			errCount++
			continue
		}
		count[r.Status]++
	}
	fmt.Printf("[%s] http status summary:\n", name)
	for _, code := range []int{201, 200, 400, 404, 429, 500} {
		if count[code] > 0 {
			fmt.Printf("  %d -> %d\n", code, count[code])
		}
	}
	if errCount > 0 {
		fmt.Printf("  errors -> %d\n", errCount)
	}
}

// doPOST sends a POST with optional headers.
func doPOST(client *http.Client, url string, body any, headers map[string]string) error {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(http.MethodPost, url, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

// getStock reads the live ledger balance, used to verify the run never
// oversold.
func getStock(client *http.Client, baseURL string, productID uint) (int64, error) {
	url := fmt.Sprintf("%s/api/stock/%d", baseURL, productID)
	resp, err := client.Get(url)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		return 0, fmt.Errorf("status=%d body=%s", resp.StatusCode, string(b))
	}

	var out struct {
		Code int `json:"code"`
		Data struct {
			Stock int64 `json:"stock"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return 0, err
	}
	return out.Data.Stock, nil
}
