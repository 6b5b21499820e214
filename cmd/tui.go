package cmd

import (
	"os"
	"path/filepath"

	"tessera/internal/tui"
)

func runTUI() error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	dbPath := flagDB
	if dbPath == "" {
		dbPath = filepath.Join(wd, ".tessera", "index.db")
	}

	return tui.Run(tui.Config{
		DBPath:    dbPath,
		DocsDir:   wd,
		OllamaURL: flagOllama,
		Model:     flagModel,
		ChatModel: flagChatModel,
	})
}
