package tools

import (
	"context"
	"sync"

	"github.com/adi-family/cocoon/internal/adi"
)

// ToolInfo is the discovery-facing description of one registered tool.
type ToolInfo struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

// Service is the Tools ADI service: it aggregates built-in providers
// (bash) and MCP stdio providers behind the same registration contract,
// dispatching call_tool by name regardless of which provider owns it.
type Service struct {
	adi.BaseService
	id string

	mr *MultiRunner

	mcpMu  sync.Mutex
	mcp    map[string]*MCPStdioProvider
	source map[string]string // tool name -> provider source label

	subMu sync.Mutex
	subs  map[string][]chan adi.SubscriptionEvent

	watchMu  sync.Mutex
	watchers map[string]*pathWatcher
}

func NewService(serviceID string) *Service {
	mr := NewMultiRunner()
	bash := NewBashRunner()
	mr.RegisterRunner("bash", bash)
	return &Service{
		id:       serviceID,
		mr:       mr,
		mcp:      make(map[string]*MCPStdioProvider),
		source:   map[string]string{"bash": "builtin"},
		subs:     make(map[string][]chan adi.SubscriptionEvent),
		watchers: make(map[string]*pathWatcher),
	}
}

// RegisterMCPProvider adds an already-started MCP stdio provider and wires
// each of its tools into the dispatch table under a "mcp:<name>" source tag.
func (s *Service) RegisterMCPProvider(p *MCPStdioProvider) {
	s.mcpMu.Lock()
	defer s.mcpMu.Unlock()
	s.mcp[p.name] = p
	for _, tool := range p.SupportedTools() {
		s.mr.RegisterRunner(tool, p)
		s.source[tool] = "mcp:" + p.name
	}
}

// CloseProviders shuts down every registered MCP subprocess and any
// active filesystem watchers. Call during agent teardown.
func (s *Service) CloseProviders() {
	s.mcpMu.Lock()
	for _, p := range s.mcp {
		p.Close()
	}
	s.mcpMu.Unlock()

	s.watchMu.Lock()
	for _, w := range s.watchers {
		w.stop()
	}
	s.watchMu.Unlock()
}

func (s *Service) ServiceID() string   { return s.id }
func (s *Service) Name() string       { return "Tools" }
func (s *Service) Version() string    { return "1.0.0" }
func (s *Service) Description() string { return "built-in tools, MCP tool providers, and filesystem watches" }

func (s *Service) Capabilities() adi.Capabilities {
	return adi.Capabilities{Subscriptions: true}
}

func (s *Service) SubscriptionEvents() []adi.SubscriptionEventInfo {
	return []adi.SubscriptionEventInfo{{Name: "fs.changed"}, {Name: "*"}}
}

func (s *Service) Subscribe(ctx context.Context, event string, filter map[string]any) (<-chan adi.SubscriptionEvent, *adi.ServiceError) {
	ch := make(chan adi.SubscriptionEvent, 64)
	s.subMu.Lock()
	s.subs[event] = append(s.subs[event], ch)
	s.subMu.Unlock()
	return ch, nil
}

func (s *Service) emit(event string, data any) {
	payload := adi.SubscriptionEvent{Service: s.id, Event: event, Data: data}
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range append(append([]chan adi.SubscriptionEvent{}, s.subs[event]...), s.subs["*"]...) {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (s *Service) Methods() []adi.MethodInfo {
	return []adi.MethodInfo{
		{Name: "list_tools"},
		{Name: "call_tool"},
		{Name: "watch_path"},
		{Name: "unwatch_path"},
	}
}

func (s *Service) Handle(ctx context.Context, method string, params map[string]any) (adi.HandleResult, *adi.ServiceError) {
	switch method {
	case "list_tools":
		return s.handleListTools(), nil
	case "call_tool":
		return s.handleCallTool(ctx, params)
	case "watch_path":
		return s.handleWatchPath(params)
	case "unwatch_path":
		return s.handleUnwatchPath(params)
	default:
		return adi.HandleResult{}, adi.MethodNotFoundErr("unknown method " + method)
	}
}

func (s *Service) handleListTools() adi.HandleResult {
	s.mcpMu.Lock()
	defer s.mcpMu.Unlock()
	out := make([]ToolInfo, 0, len(s.mr.SupportedTools()))
	for _, name := range s.mr.SupportedTools() {
		out = append(out, ToolInfo{Name: name, Source: s.source[name]})
	}
	return adi.Success(out)
}

func (s *Service) handleCallTool(ctx context.Context, params map[string]any) (adi.HandleResult, *adi.ServiceError) {
	tool, ok := params["tool"].(string)
	if !ok || tool == "" {
		return adi.HandleResult{}, adi.InvalidParams("tool is required")
	}
	args, _ := params["arguments"].(map[string]any)

	result, err := s.mr.Run(ctx, tool, args)
	if err != nil {
		return adi.HandleResult{}, adi.Internal(err.Error())
	}
	return adi.Success(result), nil
}
