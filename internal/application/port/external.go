package port

import "context"

// Rasterizer is the external document-rendering collaborator: it accepts
// a full HTML document and a page format and returns binary document
// bytes. Implementations must honor ctx cancellation and deadlines.
type Rasterizer interface {
	RenderPDF(ctx context.Context, html string, pageFormat string) ([]byte, error)
}
