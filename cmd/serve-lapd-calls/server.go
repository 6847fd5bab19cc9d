package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lapdcalls/internal/calls"
	"lapdcalls/internal/metrics"
	"lapdcalls/internal/store"
)

const callsPageSize = 50

type server struct {
	db   *sql.DB
	log  *slog.Logger
	cols []string
	// timestamp columns are rendered as RFC 3339
	timeCols map[string]bool
}

func newServer(log *slog.Logger, db *sql.DB) (*server, error) {
	cols, err := tableColumns(db, store.SQLiteTable)
	if err != nil {
		return nil, err
	}
	if !contains(cols, "incident_number") {
		return nil, fmt.Errorf("column incident_number not found in table %q", store.SQLiteTable)
	}
	s := &server{db: db, log: log, cols: cols, timeCols: map[string]bool{}}
	for _, c := range calls.Columns {
		if c.Type == calls.Timestamp {
			s.timeCols[c.Name] = true
		}
	}
	return s, nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.countRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/calls", s.handleCalls)
	r.Get("/calls/{incident}", s.handleCall)
	r.Get("/stats/years", s.handleYears)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

func (s *server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	})
}

func (s *server) handleCall(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "incident"))
	if id == "" {
		http.Error(w, "missing incident number", http.StatusBadRequest)
		return
	}
	row, err := s.fetchByID(r, id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		s.log.Error("fetch call", "incident", id, "error", err)
		return
	}
	s.writeJSON(w, row)
}

type callsPayload struct {
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
	Total   int              `json:"total"`
	Items   []map[string]any `json:"items"`
}

func (s *server) handleCalls(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var where []string
	var args []any
	if raw := strings.TrimSpace(q.Get("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}
		where = append(where, `"year" = ?`)
		args = append(args, year)
	}
	if ct := strings.TrimSpace(q.Get("call_type")); ct != "" {
		where = append(where, `"call_type" LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLikePattern(ct)+"%")
	}
	if area := strings.TrimSpace(q.Get("area")); area != "" {
		where = append(where, `"area_occ" = ? COLLATE NOCASE`)
		args = append(args, area)
	}
	page, ok := parsePageQueryParam(r, "page", 1)
	if !ok {
		http.Error(w, "invalid page", http.StatusBadRequest)
		return
	}
	offset, ok := pageOffset(page, callsPageSize)
	if !ok {
		http.Error(w, "page value is too large", http.StatusBadRequest)
		return
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = " WHERE " + strings.Join(where, " AND ")
	}
	payload := callsPayload{Page: page, PerPage: callsPageSize, Items: []map[string]any{}}
	countQ := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", quoteIdent(store.SQLiteTable), whereClause)
	if err := s.db.QueryRowContext(r.Context(), countQ, args...).Scan(&payload.Total); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		s.log.Error("count calls", "error", err)
		return
	}
	listQ := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY \"primary_date\" DESC, \"incident_number\" LIMIT ? OFFSET ?",
		joinIdents(s.cols), quoteIdent(store.SQLiteTable), whereClause)
	rows, err := s.db.QueryContext(r.Context(), listQ, append(args, callsPageSize, offset)...)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		s.log.Error("list calls", "error", err)
		return
	}
	defer rows.Close()
	for rows.Next() {
		row, err := s.scanRow(rows)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			s.log.Error("scan call", "error", err)
			return
		}
		payload.Items = append(payload.Items, row)
	}
	if err := rows.Err(); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		s.log.Error("list calls", "error", err)
		return
	}
	s.writeJSON(w, payload)
}

type yearCount struct {
	Year  int `json:"year"`
	Calls int `json:"calls"`
}

func (s *server) handleYears(w http.ResponseWriter, r *http.Request) {
	q := fmt.Sprintf(`SELECT "year", COUNT(*) FROM %s GROUP BY "year" ORDER BY "year"`, quoteIdent(store.SQLiteTable))
	rows, err := s.db.QueryContext(r.Context(), q)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		s.log.Error("year stats", "error", err)
		return
	}
	defer rows.Close()
	out := []yearCount{}
	for rows.Next() {
		var yc yearCount
		if err := rows.Scan(&yc.Year, &yc.Calls); err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			s.log.Error("year stats", "error", err)
			return
		}
		out = append(out, yc)
	}
	if err := rows.Err(); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		s.log.Error("year stats", "error", err)
		return
	}
	s.writeJSON(w, out)
}

func (s *server) fetchByID(r *http.Request, id string) (map[string]any, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE \"incident_number\" = ? LIMIT 1", joinIdents(s.cols), quoteIdent(store.SQLiteTable))
	rows, err := s.db.QueryContext(r.Context(), q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, sql.ErrNoRows
	}
	return s.scanRow(rows)
}

func (s *server) scanRow(rows *sql.Rows) (map[string]any, error) {
	values := make([]any, len(s.cols))
	scans := make([]any, len(s.cols))
	for i := range values {
		scans[i] = &values[i]
	}
	if err := rows.Scan(scans...); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(s.cols))
	for i, col := range s.cols {
		out[col] = s.normalizeValue(col, values[i])
	}
	return out, nil
}

// normalizeValue renders timestamps as RFC 3339 whether the driver hands
// them back as time.Time or as the stored text.
func (s *server) normalizeValue(col string, v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case string:
		if s.timeCols[col] {
			if ts, err := store.ParseSQLiteTime(t); err == nil {
				return ts.Format(time.RFC3339)
			}
		}
		return t
	default:
		return v
	}
}

func (s *server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

func tableColumns(db *sql.DB, table string) ([]string, error) {
	q := fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table))
	rows, err := db.Query(q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns found for table %q", table)
	}
	return cols, nil
}

func parsePageQueryParam(r *http.Request, key string, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, true
	}
	n64, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n64 < 1 || n64 > maxIntValue() {
		return 0, false
	}
	return int(n64), true
}

func pageOffset(page, perPage int) (int, bool) {
	if page < 1 || perPage < 1 {
		return 0, false
	}
	p := int64(page - 1)
	sz := int64(perPage)
	if p > maxIntValue()/sz {
		return 0, false
	}
	return int(p * sz), true
}

func maxIntValue() int64 {
	return int64(^uint(0) >> 1)
}

func escapeLikePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func joinIdents(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = quoteIdent(c)
	}
	return strings.Join(parts, ", ")
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
