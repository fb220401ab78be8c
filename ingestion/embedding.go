package ingestion

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/phrasebook/ai"
)

// embeddingProcessor embeds row texts one call at a time.
type embeddingProcessor struct {
	embedder ai.Embedder
	texts    []string
}

var _ processor = (*embeddingProcessor)(nil)

// newEmbeddingProcessor returns a processor over texts. When the embedder can
// tokenize separately and a pool is given, tokenization of the next window
// rows runs on the pool while the current row is inferred.
func newEmbeddingProcessor(embedder ai.Embedder, texts []string, pool *ants.Pool, window int, logger *slog.Logger) processor {
	if encoder, ok := embedder.(ai.Encoder); ok && pool != nil && window > 0 {
		logger.Debug("prefetching tokenization", "window", window)
		return &prefetchProcessor{
			encoder: encoder,
			texts:   texts,
			pool:    pool,
			window:  window,
			pending: make(map[int]chan encodeResult),
		}
	}
	return &embeddingProcessor{embedder: embedder, texts: texts}
}

func (p *embeddingProcessor) process(ctx context.Context, i int) ([]float32, error) {
	return p.embedder.EmbedText(ctx, p.texts[i])
}

func (p *embeddingProcessor) release() {}

type encodeResult struct {
	enc *ai.Encoding
	err error
}

// prefetchProcessor keeps up to window encodings ahead of inference.
type prefetchProcessor struct {
	encoder ai.Encoder
	texts   []string
	pool    *ants.Pool
	window  int
	pending map[int]chan encodeResult
	next    int
}

var _ processor = (*prefetchProcessor)(nil)

func (p *prefetchProcessor) process(ctx context.Context, i int) ([]float32, error) {
	for p.next < len(p.texts) && p.next <= i+p.window {
		p.submit(p.next)
		p.next++
	}
	ch, ok := p.pending[i]
	if !ok {
		ch = make(chan encodeResult, 1)
		enc, err := p.encoder.Encode(p.texts[i])
		ch <- encodeResult{enc: enc, err: err}
	}
	delete(p.pending, i)

	var res encodeResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		return nil, res.err
	}
	return p.encoder.EmbedEncoding(ctx, res.enc)
}

func (p *prefetchProcessor) submit(i int) {
	ch := make(chan encodeResult, 1)
	p.pending[i] = ch
	text := p.texts[i]
	encode := func() {
		enc, err := p.encoder.Encode(text)
		ch <- encodeResult{enc: enc, err: err}
	}
	if err := p.pool.Submit(encode); err != nil {
		// The pool is closed or overloaded; tokenize inline instead.
		encode()
	}
}

// release drops pending results. Their channels are buffered, so in-flight
// tokenizations complete without blocking.
func (p *prefetchProcessor) release() {
	clear(p.pending)
}
