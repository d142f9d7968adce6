package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"codestream/internal/change"
	"codestream/internal/chat"
	"codestream/internal/config"
	"codestream/internal/logging"
	"codestream/internal/permission"
	"codestream/internal/provider"
	"codestream/internal/security"
	"codestream/internal/session"
	"codestream/internal/storage"
	"codestream/internal/tokens"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "codestream: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		targetFile string
		modeName   string
		overwrite  bool
		replayPath string
		prompt     string
		workspace  string
		history    bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config JSON")
	flag.StringVar(&targetFile, "file", "", "Target file to edit (required)")
	flag.StringVar(&modeName, "mode", "", "Edit mode: ast_path | line_numbers | complete_file")
	flag.BoolVar(&overwrite, "overwrite", false, "Allow complete_file mode to replace an existing file")
	flag.StringVar(&replayPath, "replay", "", "Replay a recorded model response from a file ('-' for stdin) instead of a live call")
	flag.StringVar(&prompt, "prompt", "", "Instruction for the live model call")
	flag.StringVar(&workspace, "cwd", "", "Workspace root override")
	flag.BoolVar(&history, "history", false, "List the edit history for the target file and exit")
	flag.Parse()

	if strings.TrimSpace(targetFile) == "" {
		return fmt.Errorf("-file is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, closeLog, err := logging.Setup(cfg.Log.Path, cfg.Log.Debug)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	root := strings.TrimSpace(workspace)
	if root == "" {
		root = strings.TrimSpace(cfg.Runtime.WorkspaceRoot)
	}
	if root == "" {
		if root, err = os.Getwd(); err != nil {
			return fmt.Errorf("resolve cwd: %w", err)
		}
	}
	ws, err := security.NewWorkspace(root)
	if err != nil {
		return fmt.Errorf("init workspace: %w", err)
	}

	if modeName == "" {
		modeName = cfg.Edit.Mode
	}
	mode, err := change.ParseMode(modeName)
	if err != nil {
		return err
	}

	target, err := ws.Resolve(targetFile)
	if err != nil {
		return fmt.Errorf("resolve target: %w", err)
	}

	store, err := storage.NewSQLiteStore(cfg.Edit.HistoryDB)
	if err != nil {
		return fmt.Errorf("init history store: %w", err)
	}
	defer store.Close()

	if history {
		return printHistory(store, target)
	}

	registry := session.NewRegistry()
	sess, err := registry.Activate(session.Options{
		Path:               target,
		Mode:               mode,
		Overwrite:          overwrite || cfg.Edit.Overwrite,
		Permission:         permission.New(ws),
		Store:              store,
		Transport:          stdoutContinuer{},
		Tokenizer:          tokens.Default(),
		SummaryTokenBudget: cfg.Edit.SummaryTokenBudget,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	if replayPath != "" {
		return replay(replayPath, sess)
	}

	client := provider.NewClient(cfg.Provider)
	messages := []chat.Message{
		{Role: "system", Content: activationPrompt(mode, targetFile)},
		{Role: "user", Content: prompt},
	}
	return client.StreamEdits(context.Background(), messages, sess)
}

// printHistory lists the file's edit history, newest first.
func printHistory(store storage.Store, target string) error {
	records, err := store.ListHistory(target)
	if err != nil {
		return fmt.Errorf("list history: %w", err)
	}
	if len(records) == 0 {
		fmt.Printf("no edit history for %s\n", target)
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%s  %s  +%d/-%d  session %s\n",
			rec.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			rec.ChangeType, rec.Insertions, rec.Deletions, rec.SessionID)
	}
	return nil
}

// replay feeds a recorded model response through the session in small chunks,
// exercising the same mid-line splitting a live stream produces.
func replay(path string, sess *session.Session) error {
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open replay file: %w", err)
		}
		defer f.Close()
		r = f
	}

	buf := make([]byte, 4096)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			sess.OnChunk(string(buf[:n]), false)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read replay stream: %w", err)
		}
	}
	sess.OnMessageComplete()
	return nil
}

// activationPrompt states the fence-tag grammar for the active mode. The
// grammar is the wire contract with the model; the session rejects any other
// tag shape instead of reinterpreting it.
func activationPrompt(mode change.EditMode, target string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are editing the file %s. Emit edits as fenced code blocks.\n", target)
	switch mode {
	case change.ModeLineNumbers:
		b.WriteString("Each block must be tagged ```<lang>:<start>:<end> with 1-based inclusive line numbers ")
		b.WriteString("computed against the file as given; start >= 1 and end >= start.\n")
	case change.ModeCompleteFile:
		b.WriteString("Emit exactly one block tagged ```<lang> containing the complete file content.\n")
	default:
		b.WriteString("Each block must be tagged ```<lang>:<Seg>-<Seg> naming the structural scope to replace. ")
		b.WriteString("Append :before or :after to insert instead, :remove to delete, or :with-comment to also replace the preceding comment.\n")
	}
	b.WriteString("Text outside fenced blocks is ignored.")
	return b.String()
}

// stdoutContinuer prints the session's continuation summary to stdout.
type stdoutContinuer struct{}

func (stdoutContinuer) SendContinuation(text string) error {
	_, err := fmt.Println(text)
	return err
}
