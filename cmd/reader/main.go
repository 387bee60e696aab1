package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/NewsFlash/internal/domain"
	"github.com/NewsFlash/internal/feed"
	"github.com/NewsFlash/internal/infra/provider"
	"github.com/NewsFlash/internal/infra/transformer"
	"github.com/NewsFlash/internal/tui"
	"github.com/NewsFlash/pkg/config"
	tea "github.com/charmbracelet/bubbletea"
)

// The reader shows one feed in the terminal. Interests are taken from the arguments,
// e.g. `reader football tennis`.
func main() {
	os.Exit(run(os.Args[1:]))
}

// run owns every deferred cleanup so main can exit with its code afterwards.
func run(interests []string) int {
	// The terminal belongs to the UI; logs go to READER_LOG when set.
	var out io.Writer = io.Discard
	if path := os.Getenv("READER_LOG"); path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			fmt.Println(err)
			return 1
		}
		defer func() { _ = file.Close() }()
		out = file
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(out, nil)))

	cfg := config.Load()
	tr, err := transformer.GetTransformer(cfg.Source.Transformer)
	if err != nil {
		fmt.Println(err)
		return 1
	}

	p := provider.NewGenericProvider(cfg.Source, tr)
	fetcher := provider.NewInstrumented(cfg.Source.Name, p.WithQuery(domain.InterestsQuery(interests)))

	f := feed.New[domain.Article](fetcher,
		feed.WithName("reader"),
		feed.WithPrefetchDistance(cfg.PrefetchDistance),
		feed.WithFetchTimeout(cfg.FetchTimeout),
	)
	defer f.Close()

	title := "All news"
	if len(interests) > 0 {
		title = strings.Join(interests, ", ")
	}

	prog := tea.NewProgram(tui.NewModel(title, f), tea.WithAltScreen())
	if _, err := prog.Run(); err != nil {
		fmt.Println(err)
		return 1
	}
	return 0
}
