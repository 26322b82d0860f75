package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"
)

const (
	numAccounts     = 100        // Number of accounts to create
	numTransactions = 10000      // Total number of postings
	maxConcurrency  = 200        // Maximum number of concurrent requests
	successColor    = "\033[32m" // Green
	errorColor      = "\033[31m" // Red
	infoColor       = "\033[34m" // Blue
	resetColor      = "\033[0m"  // Reset color
)

var baseURL = envOr("BASE_URL", "http://localhost:8080")

type tokenResponse struct {
	Token string `json:"token"`
}

type record struct {
	ID string `json:"id"`
}

type accountResponse struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}

func main() {
	rand.Seed(time.Now().UnixNano())

	token := issueToken(envOr("ADMIN_USERNAME", "admin"), envOr("ADMIN_PASSWORD", "admin"))
	fmt.Printf("%sauthenticated as admin%s\n", successColor, resetColor)

	branchID := post(token, "/branches", map[string]interface{}{
		"name":  "load-test branch",
		"phone": "000",
	})
	userID := post(token, "/users", map[string]interface{}{
		"username": fmt.Sprintf("load-%d", time.Now().UnixNano()),
		"email":    fmt.Sprintf("load-%d@example.com", time.Now().UnixNano()),
		"phone":    fmt.Sprintf("load-%d", time.Now().UnixNano()),
		"password": "load-test",
	})

	fmt.Printf("%screating %d accounts%s\n", infoColor, numAccounts, resetColor)
	accounts := createAccounts(token, userID, branchID)
	fmt.Printf("%screated %d accounts%s\n", successColor, len(accounts), resetColor)

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup

	startTime := time.Now()
	successCount := 0
	errorCount := 0
	var mu sync.Mutex

	fmt.Printf("%slaunching %d postings with max concurrency of %d%s\n",
		infoColor, numTransactions, maxConcurrency, resetColor)

	for i := 0; i < numTransactions; i++ {
		wg.Add(1)
		sem <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			account := accounts[rand.Intn(len(accounts))]
			payload := map[string]interface{}{
				"amount": fmt.Sprintf("%d", rand.Intn(1000)+1),
			}
			switch rand.Intn(3) {
			case 0:
				payload["type"] = "DEPOSIT"
			case 1:
				payload["type"] = "WITHDRAWAL"
			default:
				payload["type"] = "TRANSFER"
				payload["destination_number"] = accounts[rand.Intn(len(accounts))].Number
			}

			status := request(token, "POST", "/accounts/"+account.ID+"/transactions", payload, nil)

			mu.Lock()
			// Floor breaches and self-transfers are expected outcomes
			// under random load, not errors.
			if status < 500 {
				successCount++
			} else {
				errorCount++
			}
			mu.Unlock()
		}()
	}

	wg.Wait()
	elapsed := time.Since(startTime)

	fmt.Printf("%sdone in %s: %d handled, %d server errors (%.1f req/s)%s\n",
		infoColor, elapsed, successCount, errorCount,
		float64(numTransactions)/elapsed.Seconds(), resetColor)
}

func createAccounts(token, userID, branchID string) []accountResponse {
	accounts := make([]accountResponse, 0, numAccounts)
	for i := 0; i < numAccounts; i++ {
		payload := map[string]interface{}{
			"number":          fmt.Sprintf("load-%d-%d", time.Now().UnixNano(), i),
			"balance":         "1000000",
			"minimum_balance": "50000",
			"interest":        "0.01",
			"user_id":         userID,
			"branch_id":       branchID,
		}
		var account accountResponse
		status := request(token, "POST", "/accounts", payload, &account)
		if status != http.StatusCreated {
			fmt.Printf("%sfailed to create account (status %d)%s\n", errorColor, status, resetColor)
			os.Exit(1)
		}
		accounts = append(accounts, account)
	}
	return accounts
}

func issueToken(username, password string) string {
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(baseURL+"/token", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Printf("%sfailed to reach API: %v%s\n", errorColor, err, resetColor)
		os.Exit(1)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Printf("%stoken request failed (status %d)%s\n", errorColor, resp.StatusCode, resetColor)
		os.Exit(1)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		fmt.Printf("%sfailed to decode token: %v%s\n", errorColor, err, resetColor)
		os.Exit(1)
	}
	return token.Token
}

// post creates a record and returns its ID, exiting on failure.
func post(token, path string, payload interface{}) string {
	var rec record
	status := request(token, "POST", path, payload, &rec)
	if status != http.StatusCreated {
		fmt.Printf("%sPOST %s failed (status %d)%s\n", errorColor, path, status, resetColor)
		os.Exit(1)
	}
	return rec.ID
}

// request performs an authenticated JSON request and optionally decodes the
// response body into out. Returns the status code.
func request(token, method, path string, payload, out interface{}) int {
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(method, baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		_ = json.NewDecoder(resp.Body).Decode(out)
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp.StatusCode
}

func envOr(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
