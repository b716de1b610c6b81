package rsmsource

import "sync"

// bufferPool hands out vertex buffers and counts the ones not yet returned.
type bufferPool struct {
	pool        sync.Pool
	outstanding int
}

func (p *bufferPool) get(n int) *handle {
	var buf []float32
	if v, ok := p.pool.Get().(*[]float32); ok && cap(*v) >= n {
		buf = (*v)[:n]
	} else {
		buf = make([]float32, n)
	}
	p.outstanding++
	return &handle{pool: p, buf: buf}
}

// handle owns one pooled buffer until Release.
type handle struct {
	pool *bufferPool
	buf  []float32
}

// Release returns the buffer to the pool. Later calls do nothing.
func (h *handle) Release() {
	if h.pool == nil {
		return
	}
	buf := h.buf[:0]
	h.pool.pool.Put(&buf)
	h.pool.outstanding--
	h.pool = nil
	h.buf = nil
}
