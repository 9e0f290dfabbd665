// tail follows a running cs-recv: it either polls the HTTP API for one
// count category or subscribes to the reports published on NATS.
package main

import (
	"CommSpectra/internal/model"
	"CommSpectra/internal/sink/natsink"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	mode := flag.String("mode", "api", "Follow mode: 'api' to poll the HTTP API, 'nats' to subscribe to published reports.")
	apiAddr := flag.String("api", "http://localhost:8080", "Base URL of the cs-recv HTTP API.")
	category := flag.String("category", "late", "Count category to poll in api mode (send, recv or late).")
	interval := flag.Duration("interval", 5*time.Second, "Poll interval in api mode.")
	natsURL := flag.String("nats", "nats://localhost:4222", "NATS server URL in nats mode.")
	subject := flag.String("subject", "commspectra.reports", "Base subject of the nats sink.")
	flag.Parse()

	log.Printf("Running in '%s' mode.", *mode)

	switch *mode {
	case "api":
		pollAPI(*apiAddr, *category, *interval)
	case "nats":
		followNATS(*natsURL, *subject)
	default:
		log.Fatalf("Invalid mode: %s. Use 'api' or 'nats'.", *mode)
	}
}

func pollAPI(base, category string, interval time.Duration) {
	url := fmt.Sprintf("%s/v1/counts/%s", base, category)
	client := &http.Client{Timeout: 10 * time.Second}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		docs, err := fetch(client, url)
		if err != nil {
			log.Printf("Failed to query %s: %v", url, err)
		} else {
			fmt.Printf("--- %s (%d keys) ---\n", time.Now().Format(time.RFC3339), len(docs))
			for _, d := range docs {
				fmt.Printf("%s\t(%d, %gs) -> %d\n", d.Category, d.Channel, d.BucketSeconds, d.Value)
			}
		}
		<-ticker.C
	}
}

func fetch(client *http.Client, url string) ([]model.ReportDoc, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %s: %s", resp.Status, body)
	}
	var docs []model.ReportDoc
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return docs, nil
}

func followNATS(url, subject string) {
	sub, err := natsink.NewSubscriber(url, subject)
	if err != nil {
		log.Fatalf("Failed to create subscriber: %v", err)
	}
	defer sub.Close()

	err = sub.Start(func(runID string, d model.ReportDoc) {
		if d.Subject != "" {
			fmt.Printf("[%s] %s\t(%s, %gs)\t%+d\n", runID, d.Category, d.Subject, d.BucketSeconds, d.Diff)
			return
		}
		fmt.Printf("[%s] %s\t(%d, %gs) -> %d\n", runID, d.Category, d.Channel, d.BucketSeconds, d.Value)
	})
	if err != nil {
		log.Fatalf("Failed to subscribe: %v", err)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
}
