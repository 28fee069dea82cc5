package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aluiziolira/backlog-match/models"
	"github.com/aluiziolira/backlog-match/similarity"
)

const separator = "--------------------------------------------------"

func printCollection(w io.Writer, c *collection) {
	if c == nil || c.result == nil {
		return
	}
	result := c.result

	fmt.Fprintln(w, "\n"+separator)
	fmt.Fprintf(w, "Catalogue: %s\n", c.profile.username)
	fmt.Fprintf(w, "  Records:       %d\n", len(result.Catalogue))
	fmt.Fprintf(w, "  Pages:         %d\n", result.Pages)
	fmt.Fprintf(w, "  Fetches:       %d\n", result.Fetches)
	fmt.Fprintf(w, "  Retries:       %d\n", result.Retries)
	fmt.Fprintf(w, "  Stopped on:    %s\n", result.Stop)
	if result.Stop == models.StopFetchError && result.LastError != nil {
		fmt.Fprintf(w, "  Last error:    %v\n", result.LastError)
	}
	if c.incomplete {
		fmt.Fprintf(w, "  Warning:       catalogue possibly incomplete (stopped on %s)\n", result.Stop)
	}
	fmt.Fprintf(w, "  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	fmt.Fprintf(w, "  Output:        %s\n", strings.Join(c.outputs, ", "))
	fmt.Fprintln(w, separator)
}

func printScore(w io.Writer, left, right string, result similarity.Result, ok bool) {
	fmt.Fprintln(w, "\n"+separator)
	if !ok {
		fmt.Fprintf(w, "No shared titles between %s and %s; similarity is undefined.\n", left, right)
		fmt.Fprintln(w, separator)
		return
	}

	fmt.Fprintf(w, "Similarity %s vs %s: %.2f/100\n", left, right, result.Score)
	fmt.Fprintf(w, "  Mode:          %s\n", result.Mode)
	fmt.Fprintf(w, "  Shared titles: %d of %d\n", result.Shared, result.Union)
	fmt.Fprintf(w, "  Rated by both: %d\n", result.Rated)
	fmt.Fprintf(w, "  Overlap:       %.4f\n", result.Overlap)
	fmt.Fprintf(w, "  Agreement:     %.4f\n", result.Agreement)
	fmt.Fprintln(w, separator)
}
