package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hexaforge/agency-office/internal/documents"
	"github.com/hexaforge/agency-office/internal/documents/render"
)

// RenderOptions defines the flags of the render command.
type RenderOptions struct {
	Kind      string
	InputPath string
	OutputDir string
	Company   string
	Now       time.Time
	Stdout    io.Writer
	Stderr    io.Writer
}

// RenderCommand renders a stored document exported as JSON into a PDF file
// named after the document. It returns the process exit code.
func RenderCommand(opts RenderOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}

	raw, err := os.ReadFile(opts.InputPath)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "render: read input: %v\n", err)
		return 1
	}
	doc, err := decodeDocument(documents.Kind(opts.Kind), raw, opts.Now)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "render: %v\n", err)
		return 1
	}

	var ropts []render.Option
	if opts.Company != "" {
		ropts = append(ropts, render.WithCompanyName(opts.Company))
	}
	file, err := render.NewRenderer(ropts...).Render(doc)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "render: %v\n", err)
		return 1
	}
	out := filepath.Join(opts.OutputDir, file.Name)
	if err := os.WriteFile(out, file.Data, 0o644); err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "render: write output: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(opts.Stdout, "%s (%d pages)\n", out, file.Pages)
	return 0
}

func decodeDocument(kind documents.Kind, raw []byte, now time.Time) (render.Document, error) {
	switch kind {
	case documents.KindQuotation:
		var q documents.Quotation
		if err := json.Unmarshal(raw, &q); err != nil {
			return render.Document{}, fmt.Errorf("decode quotation: %w", err)
		}
		return render.FromQuotation(q, now), nil
	case documents.KindProposal:
		var p documents.Proposal
		if err := json.Unmarshal(raw, &p); err != nil {
			return render.Document{}, fmt.Errorf("decode proposal: %w", err)
		}
		return render.FromProposal(p, now), nil
	case documents.KindInvoice:
		var inv documents.Invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return render.Document{}, fmt.Errorf("decode invoice: %w", err)
		}
		return render.FromInvoice(inv, now), nil
	}
	return render.Document{}, fmt.Errorf("unknown document kind %q", kind)
}
