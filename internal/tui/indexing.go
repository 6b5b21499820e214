package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"tessera/internal/index"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type indexingModel struct {
	spinner       spinner.Model
	phase         string
	docsProcessed int
	docsTotal     int
	done          bool
	stats         *index.Stats
	err           error
}

func newIndexingModel() indexingModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle
	return indexingModel{
		spinner: sp,
		phase:   "Indexing documents...",
	}
}

// indexDoneMsg is sent when indexing completes.
type indexDoneMsg struct {
	stats *index.Stats
	err   error
}

// indexProgressMsg is sent periodically during indexing.
type indexProgressMsg struct {
	phase         string
	docsProcessed int
	docsTotal     int
}

func runIndex(cfg Config) tea.Cmd {
	return func() tea.Msg {
		docsDir := cfg.DocsDir
		if docsDir == "" {
			wd, err := os.Getwd()
			if err != nil {
				return indexDoneMsg{err: err}
			}
			docsDir = wd
		}

		dbPath := cfg.DBPath
		if dbPath == "" {
			dbPath = filepath.Join(docsDir, ".tessera", "index.db")
		}

		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return indexDoneMsg{err: fmt.Errorf("create db directory: %w", err)}
		}

		// Redirect stdout to suppress indexer's fmt.Printf output.
		origStdout := os.Stdout
		devNull, err := os.Open(os.DevNull)
		if err == nil {
			os.Stdout = devNull
		}

		// Progress updates go through cfg.program (set by the TUI) so the
		// pipeline goroutines can message the tea program directly.
		idx, err := index.New(index.Config{
			DBPath:        dbPath,
			OllamaURL:     cfg.OllamaURL,
			Model:         cfg.Model,
			Workers:       runtime.NumCPU(),
			OverviewModel: cfg.ChatModel,
			OnProgress: func(phase string, processed, total int) {
				if cfg.program != nil && cfg.program.p != nil {
					cfg.program.p.Send(indexProgressMsg{
						phase:         phase,
						docsProcessed: processed,
						docsTotal:     total,
					})
				}
			},
		})
		if err != nil {
			os.Stdout = origStdout
			if devNull != nil {
				devNull.Close()
			}
			return indexDoneMsg{err: err}
		}

		stats, indexErr := idx.Index(docsDir)

		// Restore stdout.
		os.Stdout = origStdout
		if devNull != nil {
			devNull.Close()
		}

		if indexErr != nil {
			idx.Close()
			return indexDoneMsg{stats: stats, err: indexErr}
		}

		return indexDoneMsg{stats: stats}
	}
}

func (m indexingModel) Update(msg tea.Msg) (indexingModel, tea.Cmd) {
	switch msg := msg.(type) {
	case indexDoneMsg:
		m.done = true
		m.stats = msg.stats
		m.err = msg.err
		return m, nil
	case indexProgressMsg:
		m.phase = msg.phase
		m.docsProcessed = msg.docsProcessed
		m.docsTotal = msg.docsTotal
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m indexingModel) View(width, height int) string {
	s := "\n"
	s += titleStyle.Render("  Indexing") + "\n\n"

	if m.done {
		if m.err != nil {
			s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n"
			s += dimStyle.Render("  Press Enter to continue to chat anyway, or q to quit.") + "\n"
			return s
		}
		s += successStyle.Render("  ✓ Indexing complete!") + "\n\n"
		if m.stats != nil {
			s += fmt.Sprintf("  Documents: %d total, %d indexed, %d unchanged\n",
				m.stats.DocsTotal, m.stats.DocsIndexed, m.stats.DocsSkipped)
			s += fmt.Sprintf("  Chunks: %d\n", m.stats.ChunksTotal)
		}
		s += "\n"
		s += dimStyle.Render("  Press Enter to start chatting") + "\n"
		return s
	}

	s += fmt.Sprintf("  %s %s\n", m.spinner.View(), m.phase)
	if m.docsTotal > 0 {
		s += fmt.Sprintf("  %d / %d documents processed\n", m.docsProcessed, m.docsTotal)
	}
	s += "\n"
	s += dimStyle.Render("  This may take a while for large dictionary exports...") + "\n"
	return s
}
