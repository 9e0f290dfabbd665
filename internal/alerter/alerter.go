package alerter

import (
	"CommSpectra/internal/config"
	"CommSpectra/internal/model"
	"CommSpectra/internal/report"
	"fmt"
	"html"
	"log"
	"strings"
	"sync"
	"time"
)

type rule struct {
	config.AlerterRule
	category model.Category
	compare  func(v, threshold float64) bool
}

var operators = map[string]func(v, threshold float64) bool{
	">":  func(v, t float64) bool { return v > t },
	">=": func(v, t float64) bool { return v >= t },
	"<":  func(v, t float64) bool { return v < t },
	"<=": func(v, t float64) bool { return v <= t },
	"==": func(v, t float64) bool { return v == t },
	"!=": func(v, t float64) bool { return v != t },
}

// Alerter is responsible for evaluating the board against predefined rules
// and triggering notifications if rules are violated.
type Alerter struct {
	board         *report.Board
	rules         []rule
	notifier      model.Notifier
	checkInterval time.Duration
	stopChan      chan struct{}
	wg            sync.WaitGroup
}

// NewAlerter creates a new Alerter instance.
func NewAlerter(cfg *config.AlerterConfig, board *report.Board, notifier model.Notifier) (*Alerter, error) {
	interval, err := time.ParseDuration(cfg.CheckInterval)
	if err != nil {
		return nil, fmt.Errorf("invalid check_interval for alerter: %w", err)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("alerter check_interval must be a positive duration")
	}

	rules := make([]rule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		category, err := model.ParseCategory(r.Category)
		if err != nil {
			return nil, fmt.Errorf("alerter rule '%s': %w", r.Name, err)
		}
		compare, ok := operators[r.Operator]
		if !ok {
			return nil, fmt.Errorf("alerter rule '%s': unknown operator %q", r.Name, r.Operator)
		}
		rules = append(rules, rule{AlerterRule: r, category: category, compare: compare})
	}

	return &Alerter{
		board:         board,
		rules:         rules,
		notifier:      notifier,
		checkInterval: interval,
		stopChan:      make(chan struct{}),
	}, nil
}

// Start begins the periodic evaluation of alert rules in the background.
func (a *Alerter) Start() {
	log.Println("Alerter started")
	a.wg.Add(1)
	go a.run()
}

func (a *Alerter) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.evaluateAllRules()
		case <-a.stopChan:
			return
		}
	}
}

// Stop stops the evaluation loop and runs one final check.
func (a *Alerter) Stop() {
	log.Println("Stopping Alerter...")
	close(a.stopChan)
	a.wg.Wait()
	a.evaluateAllRules()
}

// evaluateAllRules checks every rule concurrently and sends one
// consolidated notification for everything that triggered.
func (a *Alerter) evaluateAllRules() {
	var wg sync.WaitGroup
	resultsChan := make(chan string, len(a.rules))

	for _, r := range a.rules {
		wg.Add(1)
		go func(r rule) {
			defer wg.Done()
			if msg := a.evaluate(r); msg != "" {
				resultsChan <- msg
			}
		}(r)
	}

	wg.Wait()
	close(resultsChan)

	var allMessages []string
	for msg := range resultsChan {
		allMessages = append(allMessages, msg)
	}

	if len(allMessages) == 0 {
		return
	}

	log.Printf("Alerter evaluation completed. %d alert(s) triggered.", len(allMessages))

	body := "<h1>CommSpectra Alert Summary</h1>" +
		"<p>The following alerts were triggered during the last check:</p><hr>" +
		strings.Join(allMessages, "<hr>")

	if a.notifier != nil {
		subject := fmt.Sprintf("CommSpectra Alert Summary (%d Triggered)", len(allMessages))
		if err := a.notifier.Send(subject, body); err != nil {
			log.Printf("ERROR: Failed to send consolidated alert notification: %v", err)
		} else {
			log.Printf("INFO: Consolidated alert notification sent successfully.")
		}
	}
}

// evaluate returns an HTML fragment listing the keys that violate r, or ""
// when none do.
func (a *Alerter) evaluate(r rule) string {
	var b strings.Builder
	hits := 0
	for _, rep := range a.board.Snapshot(r.category) {
		if !r.compare(float64(rep.Value), r.Threshold) {
			continue
		}
		if hits == 0 {
			fmt.Fprintf(&b, "<h3>%s</h3><p>%s %s %g</p><ul>",
				html.EscapeString(r.Name), r.category, html.EscapeString(r.Operator), r.Threshold)
		}
		hits++
		fmt.Fprintf(&b, "<li>channel %d, bucket %s: %d</li>", rep.Key.Channel, rep.Key.Bucket, rep.Value)
	}
	if hits == 0 {
		return ""
	}
	b.WriteString("</ul>")
	return b.String()
}
