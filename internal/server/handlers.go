package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"

	"github.com/hopstack/toolcatalog/catalog"
	"github.com/hopstack/toolcatalog/internal/respond"
)

// CompactDescriptionLength bounds descriptions in /tools.json?compact=1
const CompactDescriptionLength = 100

type compactTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type healthResponse struct {
	Status string `json:"status"`
	Tools  int    `json:"tools"`
}

// toolsQuery holds the optional /tools.json filters
type toolsQuery struct {
	compact   bool
	namesOnly bool
	category  string
	search    string
	offset    int
	limit     int // negative means unlimited
}

func parseToolsQuery(values url.Values) (toolsQuery, error) {
	q := toolsQuery{
		compact:   values.Get("compact") == "1",
		namesOnly: values.Get("names_only") == "1",
		category:  values.Get("category"),
		search:    strings.ToLower(values.Get("search")),
		limit:     -1,
	}

	if v := values.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, fmt.Errorf("offset must be a non-negative integer")
		}
		q.offset = n
	}
	if v := values.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return q, fmt.Errorf("limit must be a non-negative integer")
		}
		q.limit = n
	}
	return q, nil
}

func (q toolsQuery) filter(registry *catalog.Registry) []catalog.Tool {
	var tools iter.Seq[catalog.Tool] = registry.List()
	if q.category != "" {
		tools = registry.Filter(q.category)
	}

	selected := []catalog.Tool{}
	skipped := 0
	for tool := range tools {
		if q.search != "" &&
			!strings.Contains(strings.ToLower(tool.Name), q.search) &&
			!strings.Contains(strings.ToLower(tool.Description), q.search) {
			continue
		}
		if skipped < q.offset {
			skipped++
			continue
		}
		if q.limit >= 0 && len(selected) >= q.limit {
			break
		}
		selected = append(selected, tool)
	}
	return selected
}

// handleToolsJSON serves the whole registry, or a filtered view of it when
// query parameters are present
func (s *Server) handleToolsJSON(w http.ResponseWriter, r *http.Request) {
	if len(r.URL.Query()) == 0 {
		data, err := json.Marshal(s.registry)
		if err != nil {
			respond.Error(w, http.StatusInternalServerError, "error encoding tools")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(data)
		return
	}

	q, err := parseToolsQuery(r.URL.Query())
	if err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	tools := q.filter(s.registry)

	switch {
	case q.namesOnly:
		names := make([]string, 0, len(tools))
		for _, tool := range tools {
			names = append(names, tool.Name)
		}
		respond.JSON(w, http.StatusOK, names)
	case q.compact:
		compact := make([]compactTool, 0, len(tools))
		for _, tool := range tools {
			compact = append(compact, compactTool{
				Name:        tool.Name,
				Description: truncate(tool.Description, CompactDescriptionLength),
			})
		}
		respond.JSON(w, http.StatusOK, compact)
	default:
		respond.JSON(w, http.StatusOK, tools)
	}
}

// handleToolSchema serves a single definition, matching the name exactly
// and then ignoring case
func (s *Server) handleToolSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}

	tool, err := s.registry.Lookup(name)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respond.Error(w, http.StatusNotFound, fmt.Sprintf("Tool '%s' not found", name))
			return
		}
		respond.Error(w, http.StatusInternalServerError, "error looking up tool")
		return
	}
	respond.JSON(w, http.StatusOK, tool)
}

func (s *Server) handleCategories(w http.ResponseWriter, _ *http.Request) {
	categories := s.registry.Categories()
	if categories == nil {
		categories = []string{}
	}
	respond.JSON(w, http.StatusOK, categories)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, healthResponse{Status: "ok", Tools: s.registry.Len()})
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
