package app

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/softtagz-sys/medikits-flowchart/internal/dotgraph"
	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart"
	"github.com/softtagz-sys/medikits-flowchart/internal/layout"
	"github.com/softtagz-sys/medikits-flowchart/internal/snapshot"
	"github.com/softtagz-sys/medikits-flowchart/internal/traversal"
)

// ExpertVar is the session variable that mirrors the engine's expert mode so
// choice conditions can refer to it.
const ExpertVar = "expert"

var ErrEmptySource = errors.New("flowchart source is required")

type Cache interface {
	GetOrCompute(source string, fn func() (*flowchart.Graph, error)) (*flowchart.Graph, error)
}

type Service struct {
	engine *traversal.Engine
	cache  Cache
	layout layout.Options
	logger *zap.Logger
}

type Option func(*Service)

func WithLayoutOptions(opts layout.Options) Option {
	return func(s *Service) { s.layout = opts }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(engine *traversal.Engine, cache Cache, opts ...Option) *Service {
	if engine == nil {
		engine = traversal.NewEngine()
	}
	s := &Service{
		engine: engine,
		cache:  cache,
		layout: layout.DefaultOptions(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load decodes data (cached by content) and returns a private copy the caller
// may edit freely.
func (s *Service) Load(data []byte, f snapshot.Format) (*flowchart.Graph, error) {
	if len(data) == 0 {
		return nil, ErrEmptySource
	}
	decode := func() (*flowchart.Graph, error) {
		s.logger.Debug("decoding flowchart", zap.String("format", string(f)), zap.Int("bytes", len(data)))
		return snapshot.Unmarshal(data, f)
	}

	var (
		g   *flowchart.Graph
		err error
	)
	if s.cache == nil {
		g, err = decode()
	} else {
		g, err = s.cache.GetOrCompute(string(f)+"\x00"+string(data), decode)
	}
	if err != nil {
		return nil, err
	}
	return g.Clone(), nil
}

func (s *Service) Check(g *flowchart.Graph) []flowchart.Issue {
	issues := flowchart.Validate(g)
	if len(issues) > 0 {
		fields := []zap.Field{zap.Int("issues", len(issues)), zap.Bool("blocking", flowchart.HasErrors(issues))}
		if g != nil {
			fields = append(fields, zap.String("graph", g.ID))
		}
		s.logger.Info("flowchart has issues", fields...)
	}
	return issues
}

func (s *Service) Layout(g *flowchart.Graph) layout.Diagram {
	return layout.Compute(g, s.layout)
}

// Pin lays g out and returns a copy with every node's position stored.
func (s *Service) Pin(g *flowchart.Graph) *flowchart.Graph {
	return layout.Pin(g, s.Layout(g))
}

// RenderDOT lays g out and writes it as DOT with every node pinned.
func (s *Service) RenderDOT(g *flowchart.Graph) ([]byte, error) {
	d := s.Layout(g)
	out, err := dotgraph.Render(g, &d)
	if err != nil {
		return nil, fmt.Errorf("render dot: %w", err)
	}
	return []byte(out), nil
}

func (s *Service) Convert(data []byte, from, to snapshot.Format) ([]byte, error) {
	g, err := s.Load(data, from)
	if err != nil {
		return nil, err
	}
	return snapshot.Marshal(g, to)
}

// Walk starts a session on g, applies actions in order and reports where it
// stopped. A rejected action ends the walk with the error; the report still
// covers every accepted step.
func (s *Service) Walk(g *flowchart.Graph, actions []traversal.Action, vars map[string]any) (traversal.Report, error) {
	merged := make(map[string]any, len(vars)+1)
	merged[ExpertVar] = s.engine.ExpertMode()
	for k, v := range vars {
		merged[k] = v
	}

	session := s.engine.NewSession(g, traversal.WithVars(merged))
	all := append([]traversal.Action{traversal.Start()}, actions...)
	err := session.Replay(all...)
	report := session.Report()
	if err != nil {
		return report, fmt.Errorf("walk stopped after %d step(s): %w", len(report.Steps), err)
	}
	return report, nil
}

// ParseActions reads a comma separated action list: a choice index, "c" for
// continue, "b" for back and "a" for abort.
func ParseActions(list string) ([]traversal.Action, error) {
	var out []traversal.Action
	for _, raw := range strings.Split(list, ",") {
		tok := strings.ToLower(strings.TrimSpace(raw))
		switch tok {
		case "":
			continue
		case "c", "continue":
			out = append(out, traversal.Continue())
		case "b", "back":
			out = append(out, traversal.Back())
		case "a", "abort":
			out = append(out, traversal.Abort())
		default:
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 {
				return nil, fmt.Errorf("action %q: want a choice index, c, b or a", raw)
			}
			out = append(out, traversal.Choose(i))
		}
	}
	return out, nil
}

// ParseVars turns k=v pairs into session variables. Values that parse as a
// bool or a number keep that type.
func ParseVars(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("variable %q: want key=value", p)
		}
		vars[k] = parseValue(strings.TrimSpace(v))
	}
	return vars, nil
}

func parseValue(v string) any {
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if i, err := strconv.Atoi(v); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}
