// Package main is a minimal HTTP health check binary for use in distroless
// containers. It exits 0 when the /health endpoint returns HTTP 200, and 1
// otherwise. A degraded service (counter store down) still answers 200.
//
// The target defaults to localhost:8080 and follows STOREFRONT_PORT
// when set.
package main

import (
	"net/http"
	"os"
	"time"
)

func main() {
	port := os.Getenv("STOREFRONT_PORT")
	if port == "" {
		port = "8080"
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get("http://localhost:" + port + "/health")
	if err != nil {
		os.Exit(1)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
