package main

import (
    "compress/gzip"
    "context"
    "encoding/json"
    "errors"
    "io"
    "net/http"
    "strings"
    "sync"
    "time"

    "stockdash/internal/aggregate"
    "stockdash/internal/feed/ws"
    "stockdash/internal/poller"
    "stockdash/internal/provider"
    "stockdash/internal/watchlist"
)

const defaultLookupTimeout = 15 * time.Second

type server struct {
    poller *poller.Poller
    lookup provider.Fetcher
    hub    *ws.Hub
    // lookupTimeout bounds GET /api/quotes/{symbol}, including the wait
    // behind the rate limit gate.
    lookupTimeout time.Duration
}

type symbolsBody struct {
    Symbols []string `json:"symbols"`
}

type symbolBody struct {
    Symbol string `json:"symbol"`
}

func (s *server) routes() http.Handler {
    api := http.NewServeMux()
    api.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write([]byte("ok"))
    })
    api.HandleFunc("GET /api/quotes", s.handleGetQuotes)
    api.HandleFunc("GET /api/quotes/{symbol}", s.handleGetQuote)
    api.HandleFunc("GET /api/chart", s.handleGetChart)
    api.HandleFunc("GET /api/symbols", s.handleGetSymbols)
    api.HandleFunc("PUT /api/symbols", s.handlePutSymbols)
    api.HandleFunc("POST /api/symbols", s.handlePostSymbol)
    api.HandleFunc("DELETE /api/symbols/{symbol}", s.handleDeleteSymbol)

    root := http.NewServeMux()
    // The websocket upgrade needs the raw writer, so it skips the gzip chain.
    if s.hub != nil {
        root.Handle("/ws", s.hub)
    }
    root.Handle("/", withJSONHeaders(withGzip(recoverPanic(limitBody(api)))))
    return root
}

func (s *server) handleGetQuotes(w http.ResponseWriter, r *http.Request) {
    q := r.URL.Query()
    key, ok := aggregate.ParseSortKey(q.Get("sort"))
    if !ok {
        writeError(w, http.StatusBadRequest, "unknown sort column")
        return
    }
    desc := strings.EqualFold(q.Get("order"), "desc")

    st := s.poller.State()
    quotes := aggregate.Filter(st.Quotes, q.Get("filter"))
    if q.Get("sort") != "" {
        quotes = aggregate.Sort(quotes, key, desc)
    }
    st.Quotes = quotes
    writeJSON(w, http.StatusOK, st)
}

func (s *server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
    sym := watchlist.Normalize(r.PathValue("symbol"))
    if sym == "" {
        writeError(w, http.StatusBadRequest, "missing symbol")
        return
    }
    timeout := s.lookupTimeout
    if timeout <= 0 { timeout = defaultLookupTimeout }
    ctx, cancel := context.WithTimeout(r.Context(), timeout)
    defer cancel()
    writeJSON(w, http.StatusOK, s.lookup.Fetch(ctx, sym))
}

func (s *server) handleGetChart(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, aggregate.Chart(s.poller.State().Quotes))
}

func (s *server) handleGetSymbols(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, symbolsBody{Symbols: s.poller.Symbols()})
}

func (s *server) handlePutSymbols(w http.ResponseWriter, r *http.Request) {
    var b symbolsBody
    if !decodeBody(w, r, &b) { return }
    if len(b.Symbols) > 100 {
        writeError(w, http.StatusBadRequest, "too many symbols (max 100)")
        return
    }
    writeJSON(w, http.StatusOK, symbolsBody{Symbols: s.poller.SetSymbols(b.Symbols)})
}

func (s *server) handlePostSymbol(w http.ResponseWriter, r *http.Request) {
    var b symbolBody
    if !decodeBody(w, r, &b) { return }
    if err := s.poller.AddSymbol(b.Symbol); err != nil {
        writeWatchlistError(w, err)
        return
    }
    writeJSON(w, http.StatusCreated, symbolsBody{Symbols: s.poller.Symbols()})
}

func (s *server) handleDeleteSymbol(w http.ResponseWriter, r *http.Request) {
    if err := s.poller.RemoveSymbol(r.PathValue("symbol")); err != nil {
        writeWatchlistError(w, err)
        return
    }
    writeJSON(w, http.StatusOK, symbolsBody{Symbols: s.poller.Symbols()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
    dec := json.NewDecoder(r.Body)
    dec.DisallowUnknownFields()
    if err := dec.Decode(v); err != nil {
        writeError(w, http.StatusBadRequest, "invalid JSON body")
        return false
    }
    return true
}

func writeWatchlistError(w http.ResponseWriter, err error) {
    switch {
    case errors.Is(err, watchlist.ErrNotFound):
        writeError(w, http.StatusNotFound, err.Error())
    case errors.Is(err, watchlist.ErrDuplicate):
        writeError(w, http.StatusConflict, err.Error())
    default:
        writeError(w, http.StatusBadRequest, err.Error())
    }
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.WriteHeader(status)
    enc := json.NewEncoder(w)
    enc.SetEscapeHTML(false)
    _ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
    writeJSON(w, status, map[string]string{"error": msg})
}

func withJSONHeaders(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.Header().Set("Content-Type", "application/json; charset=utf-8")
        // Basic CORS for the browser dashboard.
        w.Header().Set("Access-Control-Allow-Origin", "*")
        w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
        w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
        if r.Method == http.MethodOptions {
            w.WriteHeader(http.StatusNoContent)
            return
        }
        next.ServeHTTP(w, r)
    })
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
    var gzPool = sync.Pool{New: func() any {
        w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
        return w
    }}
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
            next.ServeHTTP(w, r)
            return
        }
        gz := gzPool.Get().(*gzip.Writer)
        gz.Reset(w)
        defer func() {
            _ = gz.Close()
            gz.Reset(io.Discard)
            gzPool.Put(gz)
        }()
        w.Header().Set("Content-Encoding", "gzip")
        w.Header().Add("Vary", "Accept-Encoding")
        gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
        next.ServeHTTP(gw, r)
    })
}

type gzipResponseWriter struct {
    http.ResponseWriter
    Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
    return g.Writer.Write(b)
}

// limitBody caps request body size.
func limitBody(next http.Handler) http.Handler {
    const maxBody = 64 << 10
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        if (r.Method == http.MethodPost || r.Method == http.MethodPut) && r.Body != nil {
            r.Body = http.MaxBytesReader(w, r.Body, maxBody)
        }
        next.ServeHTTP(w, r)
    })
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        defer func() {
            if rec := recover(); rec != nil {
                http.Error(w, "internal server error", http.StatusInternalServerError)
            }
        }()
        next.ServeHTTP(w, r)
    })
}
