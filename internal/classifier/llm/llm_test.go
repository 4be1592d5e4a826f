package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-vault/internal/classifier"
	"github.com/sakif/snippet-vault/internal/model"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestParseLabel(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    model.Category
		wantErr bool
	}{
		{"json", `{"category": "Python"}`, model.CategoryPython, false},
		{"fenced json", "```json\n{\"category\":\"SQL\"}\n```", model.CategorySQL, false},
		{"bare label", "TypeScript", model.CategoryTypeScript, false},
		{"bare label with punctuation", `"C#".`, model.CategoryCSharp, false},
		{"case insensitive", `{"category": "javascript"}`, model.CategoryJavaScript, false},
		{"outside oracle subset", `{"category": "Rust"}`, "", true},
		{"garbage", "I think this is probably some kind of code", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLabel(tt.content)
			if tt.wantErr {
				assert.True(t, errors.Is(err, classifier.ErrUnrecognisedLabel), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 8, "abc"},
		{"ascii", "abcdef", 4, "abcd"},
		{"cut inside a rune", "ab€cd", 4, "ab"}, // € is 3 bytes
		{"cut after a rune", "ab€cd", 5, "ab€"},
		{"cut inside the first rune", "€", 2, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestClassify_LongCodeIsSentAsValidUTF8(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt = req.Messages[len(req.Messages)-1].Content
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{\"category\":\"Python\"}"}}]}`)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "k", Model: "m", Timeout: time.Second}, discard())
	code := "#" + strings.Repeat("é", maxCodeBytes) // 2-byte runes after a 1-byte prefix

	got, err := c.Classify(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryPython, got)
	assert.True(t, utf8.ValidString(prompt))
	assert.LessOrEqual(t, len(prompt), len("Code:\n")+maxCodeBytes)
}

func TestNew_WithoutKeyIsDisabled(t *testing.T) {
	c := New(Config{BaseURL: "http://unused"}, discard())

	_, err := c.Classify(context.Background(), "x")
	assert.True(t, errors.Is(err, classifier.ErrOracleDisabled))
}

func TestClassify(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"category\":\"HTML\"}"}}]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/", APIKey: "sk-test", Model: "test-model"}, discard())

	category, err := c.Classify(context.Background(), "<div>hi</div>")
	require.NoError(t, err)
	assert.Equal(t, model.CategoryHTML, category)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[0].Content, "C#")
	assert.True(t, strings.HasSuffix(got.Messages[1].Content, "<div>hi</div>"))
}

func TestClassify_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"no choices", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}},
		{"label outside subset", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Go"}}]}`))
		}},
		{"timeout", func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := New(Config{BaseURL: srv.URL, APIKey: "k", Timeout: 50 * time.Millisecond}, discard())
			_, err := c.Classify(context.Background(), "code")
			assert.Error(t, err)
		})
	}
}
