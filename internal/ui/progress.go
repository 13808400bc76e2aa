package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// ProgressBar tracks tables as they are published
type ProgressBar struct {
	total     int
	current   int
	startTime time.Time
	mu        sync.Mutex

	successCount int
	failureCount int
	currentItem  string
}

// NewProgressBar creates a new progress bar
func NewProgressBar(total int) *ProgressBar {
	return &ProgressBar{
		total:     total,
		startTime: time.Now(),
	}
}

// Update records the outcome of one item and redraws the bar
func (p *ProgressBar) Update(current int, item string, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = current
	p.currentItem = item

	if success {
		p.successCount++
	} else {
		p.failureCount++
	}

	p.render()
}

// Finish prints the final tally
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(Output, "\n%s Published in %s\n", ColorSuccess("✓"), formatDuration(time.Since(p.startTime)))
	fmt.Fprintf(Output, "  %s %d tables\n", ColorSuccess("✓"), p.successCount)
	if p.failureCount > 0 {
		fmt.Fprintf(Output, "  %s %d failed\n", ColorError("✗"), p.failureCount)
	}
}

func (p *ProgressBar) render() {
	fmt.Fprint(Output, "\r\033[K")

	percentage := 100.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100
	}

	barWidth := 30
	filled := int(percentage / 100 * float64(barWidth))
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	item := p.currentItem
	if len(item) > 40 {
		item = "..." + item[len(item)-37:]
	}

	fmt.Fprintf(Output, "%s %s %.0f%% [%d/%d] %s - %s",
		ColorProgress("►"),
		bar,
		percentage,
		p.current,
		p.total,
		item,
		formatDuration(time.Since(p.startTime)),
	)
}

// Spinner represents an animated spinner for long operations
type Spinner struct {
	frames  []string
	current int
	message string
	stop    chan struct{}
	stopped bool
	mu      sync.Mutex
}

// NewSpinner creates a new spinner
func NewSpinner(message string) *Spinner {
	return &Spinner{
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		message: message,
		stop:    make(chan struct{}),
	}
}

// Start begins the spinner animation; it only animates on a terminal
func (s *Spinner) Start() {
	if !supportsColor {
		fmt.Fprintf(Output, "%s %s\n", ColorProgress("►"), s.message)
		return
	}
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				if !s.stopped {
					fmt.Fprintf(Output, "\r%s %s %s",
						ColorProgress(s.frames[s.current]),
						s.message,
						strings.Repeat(" ", 20),
					)
					s.current = (s.current + 1) % len(s.frames)
				}
				s.mu.Unlock()
			}
		}
	}()
}

// Stop stops the spinner and prints the final status. It is safe to call twice.
func (s *Spinner) Stop(success bool, message string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stop)

	if supportsColor {
		fmt.Fprint(Output, "\r\033[K")
	}
	if success {
		fmt.Fprintf(Output, "%s %s\n", ColorSuccess("✓"), message)
	} else {
		fmt.Fprintf(Output, "%s %s\n", ColorError("✗"), message)
	}
	s.mu.Unlock()
}

// UpdateMessage updates the spinner message
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}
