package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var longSentence = strings.Repeat("Researchers observed the comet for weeks. ", 4)

func page(body string) string {
	return "<html><head><title>T</title><style>p{}</style></head><body>" + body + "</body></html>"
}

func TestText(t *testing.T) {
	tests := []struct {
		name    string
		html    string
		rules   Rules
		want    string
		wantErr error
	}{
		{
			name: "container text with stripped classes and tags",
			html: page(`<nav>Menu</nav>
				<div class="post-content">
				  <p>` + longSentence + `</p>
				  <div class="promo">Subscribe now!</div>
				  <figure><img src="x.png"><figcaption>Photo credit</figcaption></figure>
				  <script>track()</script>
				</div>`),
			rules: Rules{
				Container:    "div.post-content",
				StripClasses: []string{"promo"},
				StripTags:    []string{"script", "figcaption"},
			},
			want: strings.TrimSpace(longSentence),
		},
		{
			name:    "missing container",
			html:    page(`<div class="other">` + longSentence + `</div>`),
			rules:   Rules{Container: "div.post-content"},
			wantErr: ErrNoContainer,
		},
		{
			name:    "too short",
			html:    page(`<div class="post-content">Short teaser.</div>`),
			rules:   Rules{Container: "div.post-content"},
			wantErr: ErrTooShort,
		},
		{
			name:  "body fallback",
			html:  page(`<p>` + longSentence + `</p>`),
			rules: Rules{},
			want:  strings.TrimSpace(longSentence),
		},
		{
			name: "first container only",
			html: page(`<article>` + longSentence + `</article><article>Second article body</article>`),
			rules: Rules{
				Container: "article",
			},
			want: strings.TrimSpace(longSentence),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Text(strings.NewReader(tt.html), tt.rules)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("text mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExtract(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, page(`<div class="article-body">`+longSentence+`</div>`))
	}))
	defer srv.Close()

	e := New(srv.Client())

	got, err := e.Extract(context.Background(), srv.URL+"/story", Rules{Container: "div.article-body"})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if diff := cmp.Diff(strings.TrimSpace(longSentence), got); diff != "" {
		t.Errorf("text mismatch (-want +got):\n%s", diff)
	}

	if _, err := e.Extract(context.Background(), srv.URL+"/missing", Rules{}); err == nil {
		t.Fatal("expected error for 404 page")
	}
}
