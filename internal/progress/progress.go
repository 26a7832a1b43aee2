package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/fenilsonani/duster/pkg/utils"
)

// Phase represents the current phase of operation
type Phase string

const (
	PhaseWalking   Phase = "walking"
	PhaseAnalyzing Phase = "analyzing"
	PhaseHashing   Phase = "hashing"
	PhaseCleaning  Phase = "cleaning"
	PhaseComplete  Phase = "complete"
	PhaseError     Phase = "error"
)

// ScanProgress represents progress during scanning
type ScanProgress struct {
	Phase       Phase
	CurrentPath string
	Entries     int64
	ItemsFound  int
	TotalSize   int64
	StartTime   time.Time
	Error       error
}

// CleanProgress represents progress during cleanup
type CleanProgress struct {
	Phase        Phase
	CurrentFile  string
	DeletedFiles int
	TotalFiles   int
	DeletedSize  int64
	TotalSize    int64
	ErrorCount   int
	StartTime    time.Time
	Error        error
}

// ProgressReporter provides thread-safe progress reporting
type ProgressReporter struct {
	scanProgress  *ScanProgress
	cleanProgress *CleanProgress
	mu            sync.RWMutex
	listeners     []chan interface{}
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		listeners: make([]chan interface{}, 0),
	}
}

// Subscribe returns a channel that receives progress updates
func (pr *ProgressReporter) Subscribe() <-chan interface{} {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	ch := make(chan interface{}, 10)
	pr.listeners = append(pr.listeners, ch)
	return ch
}

// Unsubscribe closes and removes a listener channel
func (pr *ProgressReporter) Unsubscribe(ch <-chan interface{}) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	for i, listener := range pr.listeners {
		if listener == ch {
			close(listener)
			pr.listeners = append(pr.listeners[:i], pr.listeners[i+1:]...)
			return
		}
	}
}

// UpdateScanProgress updates scan progress and notifies listeners
func (pr *ProgressReporter) UpdateScanProgress(update *ScanProgress) {
	if pr == nil {
		return
	}
	pr.mu.Lock()
	pr.scanProgress = update
	pr.mu.Unlock()
	pr.notify(update)
}

// UpdateCleanProgress updates clean progress and notifies listeners
func (pr *ProgressReporter) UpdateCleanProgress(update *CleanProgress) {
	if pr == nil {
		return
	}
	pr.mu.Lock()
	pr.cleanProgress = update
	pr.mu.Unlock()
	pr.notify(update)
}

// notify never blocks: a listener with a full buffer misses the update.
// The read lock is held while sending so Unsubscribe cannot close a
// channel mid-send.
func (pr *ProgressReporter) notify(update interface{}) {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	for _, listener := range pr.listeners {
		select {
		case listener <- update:
		default:
		}
	}
}

// GetScanProgress returns the current scan progress
func (pr *ProgressReporter) GetScanProgress() *ScanProgress {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	return pr.scanProgress
}

// GetCleanProgress returns the current clean progress
func (pr *ProgressReporter) GetCleanProgress() *CleanProgress {
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	return pr.cleanProgress
}

// FormatScanProgress returns a human-readable scan progress string
func FormatScanProgress(p *ScanProgress) string {
	if p == nil {
		return "Initializing..."
	}

	elapsed := time.Since(p.StartTime)

	switch p.Phase {
	case PhaseWalking:
		return fmt.Sprintf("Scanning... %d entries [%s]", p.Entries, FormatDuration(elapsed))
	case PhaseAnalyzing:
		return fmt.Sprintf("Checking project activity... %d entries [%s]", p.Entries, FormatDuration(elapsed))
	case PhaseHashing:
		return fmt.Sprintf("Comparing file contents... [%s]", FormatDuration(elapsed))
	case PhaseComplete:
		return fmt.Sprintf("Scan complete: %d items (%s) in %s",
			p.ItemsFound,
			utils.FormatBytes(p.TotalSize),
			FormatDuration(elapsed))
	case PhaseError:
		return fmt.Sprintf("Scan error: %v", p.Error)
	default:
		return "Scanning..."
	}
}

// FormatCleanProgress returns a human-readable clean progress string
func FormatCleanProgress(p *CleanProgress) string {
	if p == nil {
		return "Preparing..."
	}

	elapsed := time.Since(p.StartTime)

	switch p.Phase {
	case PhaseCleaning:
		percentage := 0
		if p.TotalFiles > 0 {
			percentage = (p.DeletedFiles * 100) / p.TotalFiles
		}

		eta := ""
		if p.DeletedFiles > 0 && p.TotalFiles > p.DeletedFiles {
			avgTime := elapsed / time.Duration(p.DeletedFiles)
			remaining := time.Duration(p.TotalFiles-p.DeletedFiles) * avgTime
			eta = fmt.Sprintf(" ETA: %s", FormatDuration(remaining))
		}

		return fmt.Sprintf("Cleaning... %d/%d items (%d%%) - %s freed%s",
			p.DeletedFiles,
			p.TotalFiles,
			percentage,
			utils.FormatBytes(p.DeletedSize),
			eta)
	case PhaseComplete:
		return fmt.Sprintf("Cleanup complete: %d items deleted (%s) in %s",
			p.DeletedFiles,
			utils.FormatBytes(p.DeletedSize),
			FormatDuration(elapsed))
	case PhaseError:
		return fmt.Sprintf("Cleanup error: %v", p.Error)
	default:
		return "Preparing cleanup..."
	}
}

// FormatDuration formats duration in human-readable format
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
