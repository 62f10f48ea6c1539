// Package graph models an ffmpeg filter_complex as an explicit DAG of
// filter nodes with typed video/audio pads, serialized to the textual
// `[in]name=args[out]` form only as the final step. Keeping the graph
// structural makes ordering and labeling checkable without string parsing.
package graph

import (
	"fmt"
	"strings"
)

// Kind is the stream type carried by a pad.
type Kind int

const (
	Video Kind = iota
	Audio
)

// Pad is a labeled connection point between filters or from an input stream.
type Pad struct {
	Label string
	Kind  Kind
}

// InputVideo returns the pad for input file index's first video stream.
func InputVideo(index int) Pad {
	return Pad{Label: fmt.Sprintf("%d:v", index), Kind: Video}
}

// InputAudio returns the pad for input file index's first audio stream.
func InputAudio(index int) Pad {
	return Pad{Label: fmt.Sprintf("%d:a", index), Kind: Audio}
}

// Node is one filter invocation.
type Node struct {
	Name    string
	Args    string
	Inputs  []Pad
	Outputs []Pad
}

// Graph accumulates filter nodes in emission order.
type Graph struct {
	nodes []Node
	vseq  int
	aseq  int
}

func New() *Graph {
	return &Graph{}
}

// VideoPad allocates a fresh intermediate video pad (v0, v1, ...).
func (g *Graph) VideoPad() Pad {
	p := Pad{Label: fmt.Sprintf("v%d", g.vseq), Kind: Video}
	g.vseq++
	return p
}

// AudioPad allocates a fresh intermediate audio pad (a0, a1, ...).
func (g *Graph) AudioPad() Pad {
	p := Pad{Label: fmt.Sprintf("a%d", g.aseq), Kind: Audio}
	g.aseq++
	return p
}

// Add appends a filter node. Node order is emission order and is preserved
// in the serialized graph.
func (g *Graph) Add(name, args string, inputs []Pad, outputs []Pad) {
	g.nodes = append(g.nodes, Node{Name: name, Args: args, Inputs: inputs, Outputs: outputs})
}

// Chain appends a single-input single-output filter fed by `in`, returning
// the freshly-labeled output pad.
func (g *Graph) Chain(in Pad, name, args string) Pad {
	var out Pad
	if in.Kind == Audio {
		out = g.AudioPad()
	} else {
		out = g.VideoPad()
	}
	g.Add(name, args, []Pad{in}, []Pad{out})
	return out
}

// ChainTo is Chain with a caller-chosen terminal output pad.
func (g *Graph) ChainTo(in Pad, name, args string, out Pad) {
	g.Add(name, args, []Pad{in}, []Pad{out})
}

// Empty reports whether no filters were emitted.
func (g *Graph) Empty() bool {
	return len(g.nodes) == 0
}

// Nodes returns the emitted nodes in order.
func (g *Graph) Nodes() []Node {
	return g.nodes
}

// String serializes the graph to the filter_complex value: nodes joined by
// ';', pads rendered as bracketed labels.
func (g *Graph) String() string {
	stmts := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		var b strings.Builder
		for _, p := range n.Inputs {
			b.WriteString("[" + p.Label + "]")
		}
		b.WriteString(n.Name)
		if n.Args != "" {
			b.WriteString("=" + n.Args)
		}
		for _, p := range n.Outputs {
			b.WriteString("[" + p.Label + "]")
		}
		stmts = append(stmts, b.String())
	}
	return strings.Join(stmts, ";")
}

// Validate checks the structural invariants the serialized graph relies on:
// every intermediate pad is produced exactly once, consumed at most once,
// and consumed only after it is produced. Input-stream pads (N:v / N:a) are
// producible by definition.
func (g *Graph) Validate() error {
	produced := map[string]bool{}
	consumed := map[string]bool{}

	for _, n := range g.nodes {
		for _, in := range n.Inputs {
			if isStreamPad(in.Label) {
				continue
			}
			if !produced[in.Label] {
				return fmt.Errorf("pad %q consumed by %s before being produced", in.Label, n.Name)
			}
			if consumed[in.Label] {
				return fmt.Errorf("pad %q consumed twice", in.Label)
			}
			consumed[in.Label] = true
		}
		for _, out := range n.Outputs {
			if produced[out.Label] {
				return fmt.Errorf("pad %q produced twice", out.Label)
			}
			produced[out.Label] = true
		}
	}
	return nil
}

func isStreamPad(label string) bool {
	i := strings.IndexByte(label, ':')
	if i <= 0 {
		return false
	}
	for _, r := range label[:i] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
