// Command execution for CLI commands.
//
// Information Hiding:
// - Command dispatch logic hidden
// - Session setup hidden
// - Output formatting hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/richinex/docqa/agent"
	"github.com/richinex/docqa/ingest"
	"github.com/richinex/docqa/session"
)

// setup loads settings, builds the application and the reasoning engine,
// and opens a session.
func setup(opts Options, out io.Writer) (*App, *session.Session, error) {
	settings, err := loadSettings(opts)
	if err != nil {
		return nil, nil, err
	}

	app, err := newApp(settings, os.Stderr)
	if err != nil {
		return nil, nil, err
	}

	provider, err := createProvider(settings)
	if err != nil {
		_ = app.Close()
		return nil, nil, err
	}

	var agentOpts []agent.Option
	if opts.Verbose {
		agentOpts = append(agentOpts, agent.WithStream(out))
	}
	sess, err := app.NewSession(provider, agentOpts...)
	if err != nil {
		_ = app.Close()
		return nil, nil, err
	}
	return app, sess, nil
}

// Ask answers a single question, optionally over documents.
func Ask(ctx context.Context, question string, docs []string, opts Options, out io.Writer) error {
	app, sess, err := setup(opts, out)
	if err != nil {
		return err
	}
	defer app.Close()

	if len(docs) > 0 {
		if _, err := newUploads(sess).load(ctx, docs, out); err != nil {
			return err
		}
	}

	resp, err := sess.Ask(ctx, question)
	if err != nil {
		return err
	}
	printResponse(out, resp, opts.Verbose)
	return nil
}

// Chat starts an interactive chat session.
func Chat(ctx context.Context, docs []string, opts Options, in io.Reader, out io.Writer) error {
	app, sess, err := setup(opts, out)
	if err != nil {
		return err
	}
	defer app.Close()

	for _, w := range app.Warnings {
		fmt.Fprintf(out, "Note: %s\n", w)
	}
	return chatLoop(ctx, sess, docs, in, out, opts.Verbose)
}

const chatHelp = `Commands:
  /upload <files...>  add PDF or text documents
  /clear              remove all uploaded documents
  /tools              list active tools
  /history            show the conversation
  /reset              clear the conversation
  /help               show this help
  exit                leave the chat`

func chatLoop(ctx context.Context, sess *session.Session, docs []string, in io.Reader, out io.Writer, verbose bool) error {
	uploads := newUploads(sess)
	if len(docs) > 0 {
		if _, err := uploads.load(ctx, docs, out); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}

	fmt.Fprintf(out, "Ask about your documents, the web or Arxiv papers. Type /help for commands, 'exit' to quit.\n\n")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		if strings.HasPrefix(input, "/") {
			fields := strings.Fields(input)
			switch fields[0] {
			case "/upload":
				if len(fields) < 2 {
					fmt.Fprintln(out, "Usage: /upload <files...>")
					continue
				}
				if _, err := uploads.load(ctx, fields[1:], out); err != nil {
					fmt.Fprintf(out, "Error: %v\n", err)
				}
			case "/clear":
				uploads.clear()
				fmt.Fprintln(out, "Documents cleared.")
			case "/tools":
				printTools(out, sess.Tools())
			case "/history":
				printHistory(out, sess.History())
			case "/reset":
				sess.Reset()
				fmt.Fprintln(out, "Conversation cleared.")
			case "/help":
				fmt.Fprintln(out, chatHelp)
			default:
				fmt.Fprintf(out, "Unknown command %s. Type /help for commands.\n", fields[0])
			}
			fmt.Fprintln(out)
			continue
		}

		resp, err := sess.Ask(ctx, input)
		if err != nil {
			fmt.Fprintf(out, "\nError: %v\n\n", err)
			continue
		}
		fmt.Fprintln(out)
		printResponse(out, resp, verbose)
		fmt.Fprintln(out)
	}

	return scanner.Err()
}

// uploads tracks the documents added during a chat. Each upload re-indexes
// the whole collection; unchanged chunks come from the embedding cache.
type uploads struct {
	sess  *session.Session
	files []ingest.File
}

func newUploads(sess *session.Session) *uploads {
	return &uploads{sess: sess}
}

func (u *uploads) load(ctx context.Context, paths []string, out io.Writer) (session.IngestReport, error) {
	files, readFailures := ingest.ReadFiles(paths)

	candidate := append([]ingest.File(nil), u.files...)
	previous := make(map[string]ingest.File)
	for _, f := range files {
		var old ingest.File
		var replaced bool
		if candidate, old, replaced = upsert(candidate, f); replaced {
			previous[f.Name] = old
		}
	}

	report, err := u.sess.LoadDocuments(ctx, candidate)
	if err != nil {
		return report, err
	}

	// Failed files are not retried on later uploads. A failed replacement
	// falls back to the version that ingested before.
	failed := make(map[string]bool, len(report.Failures))
	for _, f := range report.Failures {
		failed[f.Name] = true
	}
	kept := make([]ingest.File, 0, len(candidate))
	restored := 0
	for _, f := range candidate {
		switch old, ok := previous[f.Name]; {
		case !failed[f.Name]:
			kept = append(kept, f)
		case ok:
			kept = append(kept, old)
			restored++
		}
	}
	u.files = kept

	if restored > 0 {
		again, err := u.sess.LoadDocuments(ctx, kept)
		if err != nil {
			return report, err
		}
		again.Files += len(report.Failures)
		again.Failures = append(again.Failures, report.Failures...)
		report = again
	}

	report.Files += len(readFailures)
	report.Failures = append(readFailures, report.Failures...)
	fmt.Fprintln(out, report.String())
	return report, nil
}

// clear forgets every upload and removes the session's documents.
func (u *uploads) clear() {
	u.files = nil
	u.sess.ClearDocuments()
}

// upsert stores f in files, replacing an earlier file with the same name.
// It returns the replaced file when there was one.
func upsert(files []ingest.File, f ingest.File) ([]ingest.File, ingest.File, bool) {
	for i := range files {
		if files[i].Name == f.Name {
			old := files[i]
			files[i] = f
			return files, old, true
		}
	}
	return append(files, f), ingest.File{}, false
}

// Ingest extracts, chunks and embeds files without starting a conversation,
// warming the embedding cache when one is configured.
func Ingest(ctx context.Context, paths []string, opts Options, out io.Writer) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}
	app, err := newApp(settings, os.Stderr)
	if err != nil {
		return err
	}
	defer app.Close()

	files, readFailures := ingest.ReadFiles(paths)
	result := app.pipeline.Ingest(ctx, files)

	report := session.IngestReport{
		Files:    len(paths),
		Chunks:   len(result.Chunks),
		Failures: append(readFailures, result.Failures...),
	}

	index, err := app.builder.Build(ctx, result.Chunks)
	if err != nil {
		return fmt.Errorf("build document index: %w", err)
	}
	if index.Len() > 0 {
		report.RetrieverActive = true
		report.IndexHash = index.Hash()
		report.Sources = index.Sources()
	}

	fmt.Fprintln(out, report.String())
	if report.RetrieverActive {
		fmt.Fprintf(out, "Index %s over %s\n", report.IndexHash[:12], strings.Join(report.Sources, ", "))
	}
	if n, err := app.cache.Len(ctx); err == nil {
		fmt.Fprintf(out, "Embedding cache holds %d vector(s)\n", n)
	}
	return nil
}

// ListTools prints the tools a new session would start with.
func ListTools(opts Options, out io.Writer) error {
	settings, err := loadSettings(opts)
	if err != nil {
		return err
	}
	app, err := newApp(settings, os.Stderr)
	if err != nil {
		return err
	}
	defer app.Close()

	printTools(out, app.base)
	fmt.Fprintf(out, "  %s\n    available after documents are uploaded\n", "document_retriever")
	for _, w := range app.Warnings {
		fmt.Fprintf(out, "\nNote: %s\n", w)
	}
	return nil
}
