package session

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/webseek/logindetect"
	"github.com/hazyhaar/webseek/platform"
)

// RegisterMCP registers the session management tools on an MCP server.
func (m *Manager) RegisterMCP(srv *mcp.Server) {
	m.registerSetupTool(srv)
	m.registerCheckLoginTool(srv)
	m.registerAwaitLoginTool(srv)
	m.registerNavigateTool(srv)
	m.registerSaveStateTool(srv)
	m.registerListStatesTool(srv)
	m.registerClearStateTool(srv)
}

// statusResult is the common tool reply shape.
type statusResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func okResult(format string, args ...any) statusResult {
	return statusResult{Status: "success", Message: fmt.Sprintf(format, args...)}
}

func parsePlatform(s string) (platform.Platform, error) {
	p, ok := platform.Parse(s)
	if !ok {
		return "", fmt.Errorf("unknown platform %q (want zhihu, wechat or general)", s)
	}
	return p, nil
}

type setupArgs struct {
	Platform            string `json:"platform"`
	Persistent          bool   `json:"persistent,omitempty"`
	AutoSave            bool   `json:"auto_save,omitempty"`
	AutoSaveIntervalSec int    `json:"auto_save_interval_seconds,omitempty"`
}

func (m *Manager) registerSetupTool(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "webseek_setup_browser",
		Description: "Open a browser session for a platform, restoring saved cookies and storage when persistent is set.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args setupArgs) (*mcp.CallToolResult, statusResult, error) {
		p, err := parsePlatform(args.Platform)
		if err != nil {
			return nil, statusResult{}, err
		}
		_, err = m.Setup(ctx, p, Options{
			Persistent:       args.Persistent,
			AutoSave:         args.AutoSave,
			AutoSaveInterval: time.Duration(args.AutoSaveIntervalSec) * time.Second,
		})
		if err != nil {
			return nil, statusResult{}, err
		}
		return nil, okResult("browser session ready for %s", p), nil
	})
}

type platformArgs struct {
	Platform string `json:"platform"`
}

type loginStatusResult struct {
	Status   string `json:"status"`
	Login    string `json:"login_status"`
	LoggedIn bool   `json:"logged_in"`
	URL      string `json:"url,omitempty"`
}

func (m *Manager) registerCheckLoginTool(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "webseek_check_login",
		Description: "Classify the current login state of a platform session: logged_in, logged_out, login_pending or unknown.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args platformArgs) (*mcp.CallToolResult, loginStatusResult, error) {
		p, err := parsePlatform(args.Platform)
		if err != nil {
			return nil, loginStatusResult{}, err
		}
		s, ok := m.Get(p)
		if !ok {
			return nil, loginStatusResult{}, fmt.Errorf("no session for %s; call webseek_setup_browser first", p)
		}
		st := logindetect.Detect(ctx, s, s.Profile)
		return nil, loginStatusResult{
			Status:   "success",
			Login:    st.String(),
			LoggedIn: st == logindetect.LoggedIn,
			URL:      s.CurrentURL(),
		}, nil
	})
}

type awaitLoginArgs struct {
	Platform   string `json:"platform"`
	TimeoutSec int    `json:"timeout_seconds,omitempty"`
}

func (m *Manager) registerAwaitLoginTool(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "webseek_await_login",
		Description: "Wait for a human to finish logging in to the platform's session, polling the login state until logged_in or timeout.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args awaitLoginArgs) (*mcp.CallToolResult, loginStatusResult, error) {
		p, err := parsePlatform(args.Platform)
		if err != nil {
			return nil, loginStatusResult{}, err
		}
		s, ok := m.Get(p)
		if !ok {
			return nil, loginStatusResult{}, fmt.Errorf("no session for %s; call webseek_setup_browser first", p)
		}
		st, err := logindetect.Await(ctx, s, s.Profile, logindetect.AwaitOptions{
			Timeout: time.Duration(args.TimeoutSec) * time.Second,
		})
		if err != nil {
			return nil, loginStatusResult{
				Status: "timeout",
				Login:  st.String(),
			}, nil
		}
		// Logging in is the moment worth persisting.
		if saveErr := m.SaveState(ctx, p); saveErr != nil {
			m.cfg.Logger.Warn("session: save after login failed", "platform", p, "error", saveErr)
		}
		return nil, loginStatusResult{
			Status:   "success",
			Login:    st.String(),
			LoggedIn: true,
			URL:      s.CurrentURL(),
		}, nil
	})
}

type navigateArgs struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

func (m *Manager) registerNavigateTool(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "webseek_navigate",
		Description: "Navigate a platform's session to a URL.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args navigateArgs) (*mcp.CallToolResult, statusResult, error) {
		p, err := parsePlatform(args.Platform)
		if err != nil {
			return nil, statusResult{}, err
		}
		s, ok := m.Get(p)
		if !ok {
			return nil, statusResult{}, fmt.Errorf("no session for %s; call webseek_setup_browser first", p)
		}
		if err := s.Navigate(ctx, args.URL); err != nil {
			return nil, statusResult{}, err
		}
		return nil, okResult("loaded %s", args.URL), nil
	})
}

func (m *Manager) registerSaveStateTool(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "webseek_save_state",
		Description: "Snapshot the platform session's cookies and storage into the state store.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args platformArgs) (*mcp.CallToolResult, statusResult, error) {
		p, err := parsePlatform(args.Platform)
		if err != nil {
			return nil, statusResult{}, err
		}
		if err := m.SaveState(ctx, p); err != nil {
			return nil, statusResult{}, err
		}
		return nil, okResult("state saved for %s", p), nil
	})
}

type listStatesResult struct {
	Status string      `json:"status"`
	States []stateInfo `json:"states"`
}

type stateInfo struct {
	Platform          string `json:"platform"`
	SavedAt           string `json:"saved_at"`
	CookieCount       int    `json:"cookie_count"`
	LocalStorageCount int    `json:"local_storage_count"`
}

func (m *Manager) registerListStatesTool(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "webseek_list_states",
		Description: "List all saved browser states with cookie and storage counts.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args struct{}) (*mcp.CallToolResult, listStatesResult, error) {
		infos, err := m.ListStates(ctx)
		if err != nil {
			return nil, listStatesResult{}, err
		}
		out := listStatesResult{Status: "success", States: []stateInfo{}}
		for _, in := range infos {
			out.States = append(out.States, stateInfo{
				Platform:          string(in.Platform),
				SavedAt:           in.SavedAt.Format(time.RFC3339),
				CookieCount:       in.CookieCount,
				LocalStorageCount: in.LocalStorageCount,
			})
		}
		return nil, out, nil
	})
}

func (m *Manager) registerClearStateTool(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "webseek_clear_state",
		Description: "Delete the saved browser state for a platform.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args platformArgs) (*mcp.CallToolResult, statusResult, error) {
		p, err := parsePlatform(args.Platform)
		if err != nil {
			return nil, statusResult{}, err
		}
		if err := m.ClearState(ctx, p); err != nil {
			return nil, statusResult{}, err
		}
		return nil, okResult("state cleared for %s", p), nil
	})
}
