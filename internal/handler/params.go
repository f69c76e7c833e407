package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// params reads query parameters and keeps the first parsing error, so a
// handler checks once after reading everything it needs.
type params struct {
	q   url.Values
	err error
}

func newParams(r *http.Request) *params {
	return &params{q: r.URL.Query()}
}

func (p *params) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid parameter %q: %w", key, err)
	}
}

func (p *params) str(key string) string {
	v := p.q.Get(key)
	if v == "" {
		p.fail(key, fmt.Errorf("missing"))
	}
	return v
}

func (p *params) int64(key string) int64 {
	v := p.str(key)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		p.fail(key, err)
	}
	return n
}

func (p *params) uint64(key string) uint64 {
	v := p.str(key)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		p.fail(key, err)
	}
	return n
}

func (p *params) uint32(key string) uint32 {
	v := p.str(key)
	if v == "" {
		return 0
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		p.fail(key, err)
	}
	return uint32(n)
}

// optUint32 returns def when key is absent.
func (p *params) optUint32(key string, def uint32) uint32 {
	if !p.q.Has(key) {
		return def
	}
	return p.uint32(key)
}
