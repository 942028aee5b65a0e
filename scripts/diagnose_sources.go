// Command diagnose_sources probes every configured source adapter directly,
// bypassing cache, breakers, and rate budgets, and writes a report of which
// providers currently serve post data.
//
// Usage:
//
//	go run scripts/diagnose_sources.go -id 1234567890 -user someone
//
// SOURCES_CONFIG selects the source configuration file; the built-in default
// chain is used when unset.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	appconfig "edgepulse/internal/config"
	"edgepulse/internal/domain/entity"
	"edgepulse/internal/infra/source"
)

// SourceDiagnostic is the probe result for a single source adapter.
type SourceDiagnostic struct {
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Status         string `json:"status"` // "OK", "NOT_FOUND", "UNSUPPORTED", "TIMEOUT", "ERROR"
	ResponseTimeMs int64  `json:"response_time_ms"`
	PostID         string `json:"post_id,omitempty"`
	Author         string `json:"author,omitempty"`
	Likes          int64  `json:"likes,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}

func main() {
	var (
		postID   string
		username string
		timeout  time.Duration
	)
	flag.StringVar(&postID, "id", "", "Post ID to probe with (required)")
	flag.StringVar(&username, "user", "", "Username owning the post (required for RSS mirrors)")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Per-source probe timeout")
	flag.Parse()

	if postID == "" {
		log.Fatal("a probe post ID is required: -id 1234567890")
	}
	if err := entity.ValidatePostID(postID); err != nil {
		log.Fatalf("invalid probe post ID: %v", err)
	}

	cfg, err := appconfig.LoadSourcesConfig(os.Getenv("SOURCES_CONFIG"))
	if err != nil {
		log.Fatalf("failed to load sources configuration: %v", err)
	}
	sources, err := source.NewChain(cfg.SourceConfigs())
	if err != nil {
		log.Fatalf("failed to build source chain: %v", err)
	}

	ref := entity.PostRef{ID: postID, Username: username}
	log.Printf("Probing %d sources with post %s...", len(sources), postID)

	diagnostics := make([]SourceDiagnostic, 0, len(sources))
	for i, src := range sources {
		log.Printf("[%d/%d] Probing: %s", i+1, len(sources), src.Name())
		diagnostics = append(diagnostics, probeSource(src, ref, timeout))

		// Stay polite to the providers.
		time.Sleep(500 * time.Millisecond)
	}

	generateReport(diagnostics)
	generateJSONReport(diagnostics)
}

func probeSource(src source.Source, ref entity.PostRef, timeout time.Duration) SourceDiagnostic {
	diag := SourceDiagnostic{
		Name: src.Name(),
		Kind: string(src.Kind()),
	}

	startTime := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	post, err := src.FetchPost(ctx, ref)
	diag.ResponseTimeMs = time.Since(startTime).Milliseconds()

	switch {
	case err == nil:
		diag.Status = "OK"
		diag.PostID = post.ID
		diag.Author = post.Author.Username
		diag.Likes = post.Engagement.Likes
	case ctx.Err() == context.DeadlineExceeded:
		diag.Status = "TIMEOUT"
		diag.ErrorMessage = fmt.Sprintf("probe timed out after %v", timeout)
	case isNotFound(err):
		diag.Status = "NOT_FOUND"
		diag.ErrorMessage = err.Error()
	case isUnsupported(err):
		diag.Status = "UNSUPPORTED"
		diag.ErrorMessage = err.Error()
	default:
		diag.Status = "ERROR"
		diag.ErrorMessage = err.Error()
	}
	return diag
}

func isNotFound(err error) bool {
	return errors.Is(err, entity.ErrNotFound)
}

func isUnsupported(err error) bool {
	return errors.Is(err, entity.ErrNotSupported)
}

func generateReport(diagnostics []SourceDiagnostic) {
	f, err := os.Create("source_diagnostic_report.txt")
	if err != nil {
		log.Printf("failed to create report file: %v", err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("failed to close report file: %v", err)
		}
	}()

	writef := func(format string, args ...interface{}) {
		if _, err := fmt.Fprintf(f, format, args...); err != nil {
			log.Printf("failed to write to report: %v", err)
		}
	}

	writef("===============================================\n")
	writef("Source Diagnostic Report\n")
	writef("Generated: %s\n", time.Now().Format(time.RFC3339))
	writef("Total Sources: %d\n", len(diagnostics))
	writef("===============================================\n\n")

	var okCount int
	statusCount := make(map[string]int)
	for _, d := range diagnostics {
		statusCount[d.Status]++
		if d.Status == "OK" {
			okCount++
		}
	}

	writef("SUMMARY:\n")
	writef("  Serving: %d of %d\n", okCount, len(diagnostics))
	writef("\nSTATUS BREAKDOWN:\n")
	for status, count := range statusCount {
		writef("  %s: %d\n", status, count)
	}
	writef("\nDETAILED RESULTS:\n")
	writef("===============================================\n\n")

	for _, d := range diagnostics {
		writef("Name: %s (%s)\n", d.Name, d.Kind)
		writef("  Status: %s | Response: %dms\n", d.Status, d.ResponseTimeMs)
		if d.Status == "OK" {
			writef("  Post: %s by @%s | Likes: %d\n", d.PostID, d.Author, d.Likes)
		} else {
			writef("  Error: %s\n", d.ErrorMessage)
		}
		writef("\n")
	}

	log.Println("text report generated: source_diagnostic_report.txt")
}

func generateJSONReport(diagnostics []SourceDiagnostic) {
	f, err := os.Create("source_diagnostic_report.json")
	if err != nil {
		log.Printf("failed to create JSON report: %v", err)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("failed to close JSON report file: %v", err)
		}
	}()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(diagnostics); err != nil {
		log.Printf("failed to write JSON report: %v", err)
		return
	}

	log.Println("JSON report generated: source_diagnostic_report.json")
}
