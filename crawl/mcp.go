package crawl

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/webseek/platform"
)

// SessionSource resolves a live pager for a platform. Wired to the
// session manager by the command layer so the two packages stay
// decoupled.
type SessionSource func(p platform.Platform) (Pager, bool)

type searchArgs struct {
	Platform string `json:"platform" jsonschema:"platform to search: zhihu, wechat or general"`
	Query    string `json:"query" jsonschema:"search query"`
	MaxPages int    `json:"max_pages,omitempty" jsonschema:"result pages to crawl, default 3"`
	// Pointer so an explicit 0 (keep everything) is distinguishable from
	// an omitted field (use the default).
	MinRelevance *float64 `json:"min_relevance,omitempty" jsonschema:"relevance threshold in [0,1], 0 keeps everything, default 0.5"`
}

type readPageArgs struct {
	Platform string `json:"platform" jsonschema:"platform session to read through"`
	URL      string `json:"url" jsonschema:"page to read"`
}

// RegisterMCP exposes the search and read-page tools on srv, resolving
// sessions through source on every call.
func RegisterMCP(srv *mcp.Server, source SessionSource, opts Options) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "webseek_search_content",
		Description: "Search a platform through its live browser session, scoring and filtering results across pages",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args searchArgs) (*mcp.CallToolResult, *Outcome, error) {
		eng, err := engineFor(source, args.Platform, opts)
		if err != nil {
			return nil, nil, err
		}
		minRelevance := -1.0
		if args.MinRelevance != nil {
			minRelevance = *args.MinRelevance
		}
		out, err := eng.Search(ctx, args.Query, args.MaxPages, minRelevance)
		if err != nil {
			return nil, nil, err
		}
		return jsonResult(out), out, nil
	})

	mcp.AddTool(srv, &mcp.Tool{
		Name:        "webseek_read_page",
		Description: "Navigate a live browser session to a url and extract the page's main text",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args readPageArgs) (*mcp.CallToolResult, *PageContent, error) {
		eng, err := engineFor(source, args.Platform, opts)
		if err != nil {
			return nil, nil, err
		}
		pc, err := eng.ReadPage(ctx, args.URL)
		if err != nil {
			return nil, nil, err
		}
		return jsonResult(pc), pc, nil
	})
}

func engineFor(source SessionSource, name string, opts Options) (*Engine, error) {
	p, ok := platform.Parse(name)
	if !ok {
		return nil, fmt.Errorf("crawl: unknown platform %q", name)
	}
	pager, ok := source(p)
	if !ok {
		return nil, fmt.Errorf("crawl: no session for %s; call webseek_setup_browser first", p)
	}
	prof, ok := platform.Describe(p)
	if !ok {
		return nil, fmt.Errorf("crawl: unknown platform %q", name)
	}
	return New(pager, prof, opts), nil
}

func jsonResult(v any) *mcp.CallToolResult {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: err.Error()}}, IsError: true}
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(b)}}}
}
