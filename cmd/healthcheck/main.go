// Package main is a liveness probe for distroless containers, where no
// shell or curl is available. It exits 0 when the gateway's liveness
// endpoint answers 200, and 1 otherwise. Compile with CGO_ENABLED=0 for
// a fully static binary.
package main

import (
	"net/http"
	"os"
	"time"
)

func main() {
	port := os.Getenv("TRADEGATE_PORT")
	if port == "" {
		port = "8080"
	}

	// The liveness endpoint never touches the shared store, so a probe
	// failure means the process itself is wedged.
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://localhost:" + port + "/health/live")
	if err != nil {
		os.Exit(1)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
