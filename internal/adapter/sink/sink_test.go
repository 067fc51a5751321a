package sink

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/guillermoBallester/querytap/internal/core/domain"
	"github.com/guillermoBallester/querytap/internal/core/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func userLoadRecord() port.Record {
	ev := domain.EventRecord{
		Name:           "User Load",
		SQL:            "SELECT * FROM users WHERE id = $1",
		DurationMillis: 2.34,
	}
	binds := []domain.RedactedBind{{Name: "id", DisplayValue: "1"}}
	return port.Record{
		Line:        domain.NewFormatter(false).Render(ev, domain.CategorySelect, binds, ""),
		Category:    domain.CategorySelect,
		Event:       ev,
		Binds:       binds,
		Level:       slog.LevelDebug,
		ScopeKey:    "req-1",
		Fingerprint: "abc123",
	}
}

func TestConsole_WritesLine(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	c := NewConsole(&buf)

	require.NoError(t, c.Write(context.Background(), userLoadRecord()))
	require.NoError(t, c.Write(context.Background(), port.Record{Line: "  SQL (0.0ms)  BEGIN"}))

	assert.Equal(t, "console", c.Name())
	assert.Equal(t,
		"  User Load (2.3ms)  SELECT * FROM users WHERE id = $1  [(\"id\",\"1\")]\n  SQL (0.0ms)  BEGIN\n",
		buf.String())
}

func TestConsole_ConcurrentWritesDoNotInterleave(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	c := NewConsole(&buf)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				_ = c.Write(context.Background(), port.Record{Line: "line"})
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Len(t, lines, 400)
	for _, l := range lines {
		assert.Equal(t, "line", l)
	}
}

func TestSlog_WritesStructuredRecord(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s := NewSlog(logger)

	require.NoError(t, s.Write(context.Background(), userLoadRecord()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "DEBUG", got["level"])
	assert.Equal(t, "User Load (2.3ms)", got["msg"])
	assert.Equal(t, "SELECT * FROM users WHERE id = $1", got["db.statement"])
	assert.Equal(t, "SELECT", got["db.query.category"])
	assert.Equal(t, 2.34, got["db.duration_ms"])
	assert.Equal(t, "req-1", got["scope"])
	assert.Equal(t, "abc123", got["db.fingerprint"])
	assert.Equal(t, []any{map[string]any{"name": "id", "value": "1"}}, got["db.binds"])
}

func TestSlog_RespectsHandlerLevel(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	require.NoError(t, NewSlog(logger).Write(context.Background(), userLoadRecord()))
	assert.Empty(t, buf.String())
}

func TestNewFile_InvalidPath(t *testing.T) {
	t.Parallel()
	_, err := NewFile("/nonexistent/dir/queries.jsonl")
	require.Error(t, err)
}

func TestFile_WritesNDJSON(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "queries.jsonl")
	f, err := NewFile(path)
	require.NoError(t, err)
	f.now = func() time.Time { return fixedNow }

	require.NoError(t, f.Write(context.Background(), userLoadRecord()))
	cached := userLoadRecord()
	cached.Event.Cached = true
	cached.Binds = nil
	cached.ScopeKey = ""
	require.NoError(t, f.Write(context.Background(), cached))
	require.NoError(t, f.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var entries []entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var e entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, entries, 2)

	assert.Equal(t, "2024-03-01T12:00:00Z", entries[0].Timestamp)
	assert.Equal(t, "User Load (2.3ms)", entries[0].Label)
	assert.Equal(t, "User Load", entries[0].Name)
	assert.Equal(t, "abc123", entries[0].Fingerprint)
	assert.Equal(t, 2.34, entries[0].DurationMS)
	assert.Equal(t, []domain.RedactedBind{{Name: "id", DisplayValue: "1"}}, entries[0].Binds)
	assert.Equal(t, "req-1", entries[0].Scope)

	assert.Equal(t, "CACHE User Load (2.3ms)", entries[1].Label)
	assert.True(t, entries[1].Cached)
	assert.Empty(t, entries[1].Binds)
	assert.Empty(t, entries[1].Scope)
}

func TestFile_CategoryIsWrittenByName(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "queries.jsonl")
	f, err := NewFile(path)
	require.NoError(t, err)

	rec := userLoadRecord()
	rec.Category = domain.CategoryLock
	require.NoError(t, f.Write(context.Background(), rec))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"category":"LOCK_OR_SELECT_FOR_UPDATE"`)
}

func TestFile_AppendsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "queries.jsonl")

	for range 2 {
		f, err := NewFile(path)
		require.NoError(t, err)
		require.NoError(t, f.Write(context.Background(), userLoadRecord()))
		require.NoError(t, f.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}
