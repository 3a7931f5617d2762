// ABOUTME: Traces the lifecycle reducer with every state and event fixture
// ABOUTME: Collects the resulting edges and renders them as Mermaid, Markdown or HTML

package flowchart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/authflow/internal/lifecycle"
)

// Format selects the rendered output.
type Format string

const (
	FormatMermaid  Format = "mermaid"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// ErrUnknownFormat is returned by Render for a Format it cannot produce.
var ErrUnknownFormat = errors.New("unknown format")

// Formats lists the supported output formats.
var Formats = []Format{FormatMermaid, FormatMarkdown, FormatHTML}

// Edge is one state change observed by probing the reducer.
type Edge struct {
	From  lifecycle.Status
	To    lifecycle.Status
	Event string
}

// Graph holds the traced edges in a stable order.
type Graph struct {
	Edges []Edge
}

// order is the reading order of states in the rendered diagram.
var order = []lifecycle.Status{
	lifecycle.StatusStart,
	lifecycle.StatusCheckingSession,
	lifecycle.StatusSignedOut,
	lifecycle.StatusAuthenticating,
	lifecycle.StatusContextLoading,
	lifecycle.StatusInitializing,
	lifecycle.StatusReady,
	lifecycle.StatusErrorCheckingSession,
	lifecycle.StatusErrorContext,
	lifecycle.StatusErrorInitializing,
}

func rank(s lifecycle.Status) int {
	if i := slices.Index(order, s); i >= 0 {
		return i
	}
	return len(order)
}

type traceSession struct{ id string }

func (s traceSession) UserID() string { return s.id }

type traceContext struct{}

type eventFixture struct {
	label string
	event lifecycle.Event
}

func stateFixtures() map[lifecycle.Status]lifecycle.State[traceContext] {
	session := traceSession{id: "trace-user"}
	ctx := &traceContext{}
	err := errors.New("fixture failure")
	states := []lifecycle.State[traceContext]{
		&lifecycle.Start[traceContext]{},
		&lifecycle.CheckingSession[traceContext]{},
		&lifecycle.Authenticating[traceContext]{},
		&lifecycle.ErrorCheckingSession[traceContext]{Err: err},
		&lifecycle.SignedOut[traceContext]{},
		&lifecycle.ContextLoading[traceContext]{Session: session},
		&lifecycle.ErrorContext[traceContext]{Session: session, Err: err},
		&lifecycle.Initializing[traceContext]{Session: session, Context: ctx},
		&lifecycle.ErrorInitializing[traceContext]{Session: session, Context: ctx, Err: err},
		&lifecycle.Ready[traceContext]{Session: session, Context: ctx},
	}
	out := make(map[lifecycle.Status]lifecycle.State[traceContext], len(states))
	for _, s := range states {
		out[s.Status()] = s
	}
	return out
}

// AUTH_CHANGED appears three times: same user, another user, no session.
func eventFixtures() map[lifecycle.EventType][]eventFixture {
	err := errors.New("fixture failure")
	fixtures := []eventFixture{
		{"START", lifecycle.StartEvent{}},
		{"AUTH_CHANGED [session]", lifecycle.AuthChanged{Session: traceSession{id: "trace-user"}}},
		{"AUTH_CHANGED [other user]", lifecycle.AuthChanged{Session: traceSession{id: "other-user"}}},
		{"AUTH_CHANGED [no session]", lifecycle.AuthChanged{}},
		{"AUTH_INITIATED", lifecycle.AuthInitiated{}},
		{"AUTH_CANCELLED", lifecycle.AuthCancelled{}},
		{"CONTEXT_RESOLVED", lifecycle.ContextResolved[traceContext]{Context: &traceContext{}}},
		{"INITIALIZED", lifecycle.Initialized{}},
		{"ERROR_CHECKING_SESSION", lifecycle.SessionCheckFailed{Err: err}},
		{"ERROR_CONTEXT", lifecycle.ContextFailed{Err: err}},
		{"ERROR_INITIALIZING", lifecycle.InitializeFailed{Err: err}},
	}
	out := make(map[lifecycle.EventType][]eventFixture)
	for _, f := range fixtures {
		out[f.event.Type()] = append(out[f.event.Type()], f)
	}
	return out
}

// Trace runs every fixture pair through the reducer and returns the edges
// sorted by source then target status.
func Trace() *Graph {
	r := lifecycle.NewReducer[traceContext](slog.New(slog.NewTextHandler(io.Discard, nil)))

	states := stateFixtures()
	events := eventFixtures()

	var edges []Edge
	for _, status := range lifecycle.Statuses {
		state, ok := states[status]
		if !ok {
			panic(fmt.Sprintf("flowchart: no fixture for status %s", status))
		}
		for _, et := range lifecycle.EventTypes {
			fixtures, ok := events[et]
			if !ok {
				panic(fmt.Sprintf("flowchart: no fixture for event %s", et))
			}
			for _, f := range fixtures {
				next := r.Reduce(state, f.event)
				if next == state {
					continue
				}
				edges = append(edges, Edge{From: status, To: next.Status(), Event: f.label})
			}
		}
	}

	slices.SortStableFunc(edges, func(a, b Edge) int {
		if d := rank(a.From) - rank(b.From); d != 0 {
			return d
		}
		return rank(a.To) - rank(b.To)
	})
	return &Graph{Edges: edges}
}

type mergedEdge struct {
	from, to lifecycle.Status
	labels   []string
}

// merged combines edges sharing endpoints, keeping first-seen order.
func (g *Graph) merged() []mergedEdge {
	var out []mergedEdge
	for _, e := range g.Edges {
		i := slices.IndexFunc(out, func(m mergedEdge) bool { return m.from == e.From && m.to == e.To })
		if i < 0 {
			out = append(out, mergedEdge{from: e.From, to: e.To})
			i = len(out) - 1
		}
		out[i].labels = append(out[i].labels, e.Event)
	}
	return out
}

// Mermaid renders the graph as a stateDiagram-v2.
func (g *Graph) Mermaid() string {
	var b strings.Builder
	b.WriteString("stateDiagram-v2\n")
	fmt.Fprintf(&b, "    [*] --> %s\n\n", lifecycle.StatusStart)

	for _, m := range g.merged() {
		fmt.Fprintf(&b, "    %s --> %s : %s\n", m.from, m.to, strings.Join(m.labels, " / "))
	}

	b.WriteString("\n")
	b.WriteString("    classDef entry fill:#e1bee7,stroke:#6a1b9a,color:#000\n")
	b.WriteString("    classDef ready fill:#c8e6c9,stroke:#2e7d32,color:#000\n")
	b.WriteString("    classDef signedOut fill:#bbdefb,stroke:#1565c0,color:#000\n")
	b.WriteString("    classDef loading fill:#fff9c4,stroke:#f9a825,color:#000\n")
	b.WriteString("    classDef error fill:#ffcdd2,stroke:#c62828,color:#000\n")
	fmt.Fprintf(&b, "    class %s entry\n", lifecycle.StatusStart)
	fmt.Fprintf(&b, "    class %s ready\n", lifecycle.StatusReady)
	fmt.Fprintf(&b, "    class %s signedOut\n", lifecycle.StatusSignedOut)
	fmt.Fprintf(&b, "    class %s,%s,%s,%s loading\n",
		lifecycle.StatusCheckingSession, lifecycle.StatusAuthenticating,
		lifecycle.StatusContextLoading, lifecycle.StatusInitializing)
	fmt.Fprintf(&b, "    class %s,%s,%s error\n",
		lifecycle.StatusErrorCheckingSession, lifecycle.StatusErrorContext,
		lifecycle.StatusErrorInitializing)
	return b.String()
}

// Markdown renders a report with the diagram and a transition table.
func (g *Graph) Markdown() string {
	var b strings.Builder
	b.WriteString("# Auth Lifecycle State Machine\n\n")
	b.WriteString("> Generated by `authflow-flowchart` from the reducer. Do not edit manually.\n\n")
	b.WriteString("```mermaid\n")
	b.WriteString(g.Mermaid())
	b.WriteString("```\n\n")
	b.WriteString("## Transition Table\n\n")
	b.WriteString("| From | Event | To |\n")
	b.WriteString("|------|-------|----|\n")
	for _, e := range g.Edges {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", e.From, e.Event, e.To)
	}
	return b.String()
}

// HTML renders the Markdown report as a standalone HTML page.
func (g *Graph) HTML() (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var body bytes.Buffer
	if err := md.Convert([]byte(g.Markdown()), &body); err != nil {
		return "", fmt.Errorf("converting markdown: %w", err)
	}

	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	b.WriteString("<title>Auth Lifecycle State Machine</title>\n</head>\n<body>\n")
	b.Write(body.Bytes())
	b.WriteString("</body>\n</html>\n")
	return b.String(), nil
}

// Render writes the graph to w in the given format.
func (g *Graph) Render(w io.Writer, format Format) error {
	var out string
	switch format {
	case FormatMermaid:
		out = g.Mermaid()
	case FormatMarkdown:
		out = g.Markdown()
	case FormatHTML:
		html, err := g.HTML()
		if err != nil {
			return err
		}
		out = html
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	_, err := io.WriteString(w, out)
	return err
}
