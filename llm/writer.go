package llm

import "context"

// Writer bundles script and metadata generation behind the dispatcher for
// the pipeline's Scripter seam.
type Writer struct {
	Dispatcher *Dispatcher
}

func (w *Writer) WriteScript(ctx context.Context, topic string) (string, error) {
	return GenerateScript(ctx, w.Dispatcher, topic)
}

func (w *Writer) WriteMetadata(ctx context.Context, topic, script string) Metadata {
	return GenerateMetadata(ctx, w.Dispatcher, topic, script)
}
