package crawl

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/webseek/platform"
)

var testImpl = &mcp.Implementation{Name: "webseek-test", Version: "0.1.0"}

// mcpSession registers the crawl tools over a source backed by fake
// pagers and returns a connected client session.
func mcpSession(t *testing.T, pagers map[platform.Platform]Pager) *mcp.ClientSession {
	t.Helper()

	srv := mcp.NewServer(testImpl, nil)
	RegisterMCP(srv, func(p platform.Platform) (Pager, bool) {
		pg, ok := pagers[p]
		return pg, ok
	}, Options{RatePerSecond: 10000})

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()

	go func() {
		_ = srv.Run(ctx, serverT)
	}()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func TestMCPSearchContent(t *testing.T) {
	prof := zhihuProfile(t)
	fp := &fakePager{pages: map[string]string{
		prof.SearchURL("rust async", 1): resultPage(
			zhihuCard("Rust async explained", "/question/1", "5万", "futures")),
	}}
	session := mcpSession(t, map[platform.Platform]Pager{platform.Zhihu: fp})

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name: "webseek_search_content",
		Arguments: searchArgs{
			Platform: "zhihu",
			Query:    "rust async",
			MaxPages: 1,
		},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("tool error: %v", err)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}

	var out Outcome
	if err := json.Unmarshal([]byte(tc.Text), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.FilteredResults != 1 || out.Links[0] != "https://www.zhihu.com/question/1" {
		t.Errorf("outcome = %+v", out)
	}
}

func TestMCPSearchWithoutSession(t *testing.T) {
	session := mcpSession(t, nil)

	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "webseek_search_content",
		Arguments: searchArgs{Platform: "zhihu", Query: "q"},
	})
	if err != nil {
		t.Fatalf("CallTool: %v", err)
	}
	toolErr := result.GetError()
	if toolErr == nil {
		t.Fatal("search without a session succeeded")
	}
	if !strings.Contains(toolErr.Error(), "webseek_setup_browser") {
		t.Errorf("error = %q, want a setup hint", toolErr)
	}
}
