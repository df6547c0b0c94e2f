package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cloess/interaction-analytics/pkg/tracker"
)

// Demo client: simulates a visitor browsing a product grid, then dumps
// the resulting analytics back out of the query endpoints.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "analytics service base URL")
	flag.Parse()

	zl, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	sender := tracker.NewHTTPSender(*baseURL, 10*time.Second)
	obs := tracker.NewObserver(tracker.Config{
		HoverThreshold: 100 * time.Millisecond,
		PageURL:        "/products",
	}, sender, zl)

	fmt.Println("Bootstrapping session")
	obs.Bootstrap(context.Background())

	fmt.Println("Simulating a browsing session")

	// Three products scroll into view.
	obs.Visible(1)
	obs.Visible(2)
	obs.Visible(3)

	// A glance at product 1, too brief to count.
	obs.PointerEnter(1)
	time.Sleep(40 * time.Millisecond)
	obs.PointerLeave(1)

	// A deliberate look at product 2.
	obs.PointerEnter(2)
	time.Sleep(350 * time.Millisecond)
	obs.PointerLeave(2)

	// Product 2 wins the click.
	obs.Click(2)

	// Navigate to the detail page; the grid views can fire again later.
	obs.ResetPage("/products/2")
	obs.Visible(2)
	obs.PointerEnter(2)
	time.Sleep(600 * time.Millisecond)
	obs.PointerLeave(2)

	obs.Flush()
	fmt.Println("Interactions delivered")

	for _, path := range []string{
		"/analytics/users",
		"/analytics/products",
		"/analytics/countries?hours=1",
	} {
		body, err := fetch(*baseURL + path)
		if err != nil {
			log.Fatalf("Failed to query %s: %v", path, err)
		}
		fmt.Printf("\nGET %s\n%s\n", path, body)
	}
}

func fetch(url string) (string, error) {
	resp, err := http.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return string(body), nil
}
