// Package flowchart derives the lifecycle state diagram from the reducer.
//
// Every status is paired with every event fixture and run through the real
// lifecycle reducer. Pairs that produce a different state value become edges;
// invalid transitions and no-ops are left out. The result renders as a
// Mermaid stateDiagram-v2, a Markdown report with a transition table, or that
// report converted to HTML with goldmark.
package flowchart
