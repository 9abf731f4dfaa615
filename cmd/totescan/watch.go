package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/TheMichaelB/totescan/internal/models"
	"github.com/TheMichaelB/totescan/internal/view"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Read scanned barcodes from stdin",
	Long: `Watch reads one barcode per line, as a handheld scanner types them,
and shows the contents of each tote.

Lines starting with ':' are commands:
  :retry            repeat the last attempted lookup
  :refresh          fetch the last tote again, bypassing the cache
  :history          show this session's scan history
  :recent           list recently scanned barcodes
  :N                scan the N-th recent barcode again
  :pre <id>         warm the cache for a tote without showing it
  :sort <field>     sort items by name, sku or quantity (repeat to flip)
  :filter [text]    filter items by name or SKU
  :clear            clear scan history and the active error
  :quit             exit`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var (
	watchMetricsAddr string
	watchQuiet       bool
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "",
		"Serve Prometheus metrics on this address (overrides config)")
	watchCmd.Flags().BoolVarP(&watchQuiet, "quiet", "q", false,
		"Do not print scan status changes")
}

type session struct {
	sortState view.SortState
	filter    string
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			printWarning("\nStopping...")
			cancel()
		case <-ctx.Done():
		}
	}()

	if addr := metricsAddr(); addr != "" {
		stop := serveMetrics(ctx, addr)
		defer stop()
	}

	if !watchQuiet && !jsonOutput {
		go followStatus(ctx)
	}

	sess := &session{sortState: view.DefaultSortState()}

	if id := cfg.Scan.DefaultTote; id != "" {
		sess.submit(ctx, id)
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))

	// Lines are read on their own goroutine so a signal can interrupt a
	// blocked read.
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		if interactive {
			fmt.Print("> ")
		}

		var line string
		var ok bool
		select {
		case line, ok = <-lines:
		case <-ctx.Done():
			return nil
		}
		if !ok {
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, ":") {
			if quit := sess.command(ctx, line[1:]); quit {
				return nil
			}
			continue
		}
		sess.submit(ctx, line)
	}
}

func (s *session) submit(ctx context.Context, raw string) {
	tote, err := apiClient.Scan.Submit(ctx, raw)
	s.show(tote, err)
}

func (s *session) show(tote *models.ToteContents, err error) {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if jsonOutput {
			printJSON(map[string]interface{}{"error": err.Error()})
			return
		}
		submitError(err)
		return
	}

	if jsonOutput {
		printJSON(tote)
		return
	}
	printTote(tote, s.sortState, s.filter)
}

// command runs one ':' command and reports whether the session should end.
func (s *session) command(ctx context.Context, line string) bool {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "q", "quit", "exit":
		return true

	case "retry":
		tote, err := apiClient.Scan.Retry(ctx)
		s.show(tote, err)

	case "refresh":
		tote, err := apiClient.Scan.Refresh(ctx)
		s.show(tote, err)

	case "history":
		printHistory(apiClient.State.ScanHistory())

	case "recent":
		printRecent(apiClient.Scan.RecentBarcodes())

	case "pre":
		if arg == "" {
			printWarning("Usage: :pre <tote-id>")
			break
		}
		apiClient.Scan.Prefetch(arg)

	case "sort":
		field, err := view.ParseSortField(arg)
		if err != nil {
			printWarning("%v", err)
			break
		}
		s.sortState = s.sortState.Toggle(field)
		s.redraw()

	case "filter":
		s.filter = arg
		s.redraw()

	case "clear":
		apiClient.Scan.ClearHistory()
		apiClient.Scan.ClearError()
		printSuccess("History cleared")

	default:
		n, err := strconv.Atoi(name)
		if err != nil {
			printWarning("Unknown command %q", name)
			break
		}
		recent := apiClient.Scan.RecentBarcodes()
		if n < 1 || n > len(recent) {
			printWarning("No recent barcode #%d", n)
			break
		}
		s.submit(ctx, recent[n-1])
	}
	return false
}

func (s *session) redraw() {
	if tote := apiClient.State.CurrentTote(); tote != nil && !jsonOutput {
		printTote(tote, s.sortState, s.filter)
	}
}

func followStatus(ctx context.Context) {
	sub := apiClient.State.WatchLoading()
	defer sub.Close()

	for {
		select {
		case loading, ok := <-sub.C:
			if !ok {
				return
			}
			if loading.IsLoading {
				dimColor.Fprintln(os.Stderr, loading.Message)
			}
		case <-ctx.Done():
			return
		}
	}
}

func printHistory(history []models.ScanHistoryEntry) {
	if jsonOutput {
		printJSON(history)
		return
	}
	if len(history) == 0 {
		printInfo("No scans yet")
		return
	}
	for _, entry := range history {
		when := entry.ScannedAt.Local().Format("15:04:05")
		if entry.Success {
			fmt.Printf("%s  %s  %d items\n", when, entry.ToteID, entry.ItemCount)
		} else {
			warningColor.Printf("%s  %s  %s\n", when, entry.ToteID, entry.ErrorMessage)
		}
	}
}

func printRecent(recent []string) {
	if jsonOutput {
		printJSON(recent)
		return
	}
	if len(recent) == 0 {
		printInfo("No recent barcodes")
		return
	}
	for i, barcode := range recent {
		fmt.Printf("%2d. %s\n", i+1, barcode)
	}
}

func metricsAddr() string {
	if watchMetricsAddr != "" {
		return watchMetricsAddr
	}
	if cfg.Metrics.Enabled {
		return cfg.Metrics.Addr
	}
	return ""
}

func serveMetrics(ctx context.Context, addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", apiClient.Metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.WithField("addr", addr).Info("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server failed")
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}
}
