package session

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/webseek/platform"
	"github.com/hazyhaar/webseek/statestore"
)

var testImpl = &mcp.Implementation{Name: "webseek-test", Version: "0.1.0"}

// mcpSession registers the manager's tools and returns a connected client
// session. No browser is launched: only the state tools are exercised.
func mcpSession(t *testing.T) (*Manager, *mcp.ClientSession) {
	t.Helper()
	m := testManager(t)

	srv := mcp.NewServer(testImpl, nil)
	m.RegisterMCP(srv)

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

	return m, session
}

// callTool invokes a tool and returns the JSON text of the first
// TextContent.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if err := result.GetError(); err != nil {
		t.Fatalf("CallTool(%s) tool error: %v", name, err)
	}
	if len(result.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", name)
	}
	tc, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): expected TextContent, got %T", name, result.Content[0])
	}
	return tc.Text
}

// callToolErr invokes a tool expecting a tool-level error and returns its
// message.
func callToolErr(t *testing.T, session *mcp.ClientSession, name string, args any) string {
	t.Helper()
	result, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      name,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	toolErr := result.GetError()
	if toolErr == nil {
		t.Fatalf("CallTool(%s) succeeded, wanted tool error", name)
	}
	return toolErr.Error()
}

func TestMCPListStates(t *testing.T) {
	m, session := mcpSession(t)

	var out listStatesResult
	if err := json.Unmarshal([]byte(callTool(t, session, "webseek_list_states", struct{}{})), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.States) != 0 {
		t.Fatalf("fresh store lists %d states", len(out.States))
	}

	err := m.store.Save(context.Background(), platform.Zhihu, statestore.State{
		Cookies:      []statestore.Cookie{{Name: "z_c0", Value: "tok", Domain: ".zhihu.com"}},
		LocalStorage: map[string]string{"k": "v"},
		SavedAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("seed state: %v", err)
	}

	if err := json.Unmarshal([]byte(callTool(t, session, "webseek_list_states", struct{}{})), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.States) != 1 {
		t.Fatalf("got %d states, want 1", len(out.States))
	}
	st := out.States[0]
	if st.Platform != "zhihu" || st.CookieCount != 1 || st.LocalStorageCount != 1 {
		t.Errorf("state = %+v", st)
	}
	if _, err := time.Parse(time.RFC3339, st.SavedAt); err != nil {
		t.Errorf("saved_at %q not RFC3339: %v", st.SavedAt, err)
	}
}

func TestMCPClearState(t *testing.T) {
	m, session := mcpSession(t)

	err := m.store.Save(context.Background(), platform.Wechat, statestore.State{SavedAt: time.Now()})
	if err != nil {
		t.Fatalf("seed state: %v", err)
	}

	out := callTool(t, session, "webseek_clear_state", platformArgs{Platform: "wechat"})
	if !strings.Contains(out, "success") {
		t.Errorf("clear reply = %q", out)
	}

	if _, ok, err := m.store.Load(context.Background(), platform.Wechat); err != nil || ok {
		t.Errorf("state still present after clear: ok=%v err=%v", ok, err)
	}
}

func TestMCPSaveStateWithoutSession(t *testing.T) {
	_, session := mcpSession(t)

	msg := callToolErr(t, session, "webseek_save_state", platformArgs{Platform: "zhihu"})
	if !strings.Contains(msg, "Setup") {
		t.Errorf("error = %q, want a hint to run setup", msg)
	}
}

func TestMCPUnknownPlatform(t *testing.T) {
	_, session := mcpSession(t)

	msg := callToolErr(t, session, "webseek_check_login", platformArgs{Platform: "myspace"})
	if !strings.Contains(msg, "unknown platform") {
		t.Errorf("error = %q", msg)
	}
}
