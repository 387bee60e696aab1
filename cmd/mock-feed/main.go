package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/NewsFlash/internal/infra/transformer"
	"github.com/gorilla/mux"
)

const defaultPageSize = 20

// corpus serves a fixed number of pages of generated stories, then empty pages.
type corpus struct {
	pages int
	epoch time.Time
}

func main() {
	c := &corpus{pages: envInt("MOCK_FEED_PAGES", 5), epoch: time.Now().UTC()}

	r := mux.NewRouter()
	r.HandleFunc("/v2/everything", c.everything).Methods(http.MethodGet)
	r.HandleFunc("/feed", c.feed).Methods(http.MethodGet)

	addr := ":" + envString("MOCK_FEED_PORT", "8081")
	slog.Info("Mock feed server running", "address", addr, "pages", c.pages)
	if err := http.ListenAndServe(addr, r); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func (c *corpus) paging(r *http.Request, sizeParam string) (page, size int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err = strconv.Atoi(r.URL.Query().Get(sizeParam))
	if err != nil || size < 1 {
		size = defaultPageSize
	}
	return page, size
}

// story returns the n-th story (0-based) of the corpus for topic.
func (c *corpus) story(topic string, n int) (id, title, body string, at time.Time) {
	id = fmt.Sprintf("%s-%04d", topic, n)
	title = fmt.Sprintf("%s story #%d", strings.ToUpper(topic[:1])+topic[1:], n+1)
	body = fmt.Sprintf("Generated %s story number %d from the mock feed.", topic, n+1)
	return id, title, body, c.epoch.Add(-time.Duration(n) * time.Minute)
}

func (c *corpus) everything(w http.ResponseWriter, r *http.Request) {
	page, size := c.paging(r, "pageSize")
	topic := strings.ToLower(strings.Fields(r.URL.Query().Get("q") + " news")[0])

	resp := transformer.NewsAPIResponse{Status: "ok", TotalResults: c.pages * size}
	if page <= c.pages {
		for i := 0; i < size; i++ {
			id, title, body, at := c.story(topic, (page-1)*size+i)
			a := transformer.NewsAPIArticle{
				Title:       title,
				Description: body,
				Content:     body,
				URL:         "https://mock-feed.local/articles/" + id,
				PublishedAt: at.Format(time.RFC3339),
			}
			a.Source.Name = "Mock Feed"
			if i%3 != 0 {
				a.URLToImage = "https://mock-feed.local/images/" + id + ".jpg"
			}
			resp.Articles = append(resp.Articles, a)
		}
	}
	writeJSON(w, resp)
}

func (c *corpus) feed(w http.ResponseWriter, r *http.Request) {
	page, size := c.paging(r, "page_size")

	resp := transformer.DummyResponse{Page: page, PageSize: size, Total: c.pages * size}
	if page <= c.pages {
		for i := 0; i < size; i++ {
			id, title, body, at := c.story("dummy", (page-1)*size+i)
			resp.Items = append(resp.Items, transformer.DummyArticle{
				ID:        id,
				Headline:  title,
				Content:   body,
				Timestamp: at.Format(time.RFC3339),
			})
		}
	}
	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
