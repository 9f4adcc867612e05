package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrDefinitionInvalid indicates a workflow graph failed structural
// validation. It is fatal to the run attempt: no execution record is created
// for an invalid definition, and an invalid definition cannot be activated.
var ErrDefinitionInvalid = errors.New("workflow definition invalid")

// DefinitionError collects every structural problem found in a graph so the
// caller can surface all of them at once.
type DefinitionError struct {
	Problems []string
}

func (e *DefinitionError) Error() string {
	return "workflow definition invalid: " + strings.Join(e.Problems, "; ")
}

func (e *DefinitionError) Unwrap() error {
	return ErrDefinitionInvalid
}

// ValidateGraph checks the structural invariants of a definition's graph:
// exactly one trigger node with no incoming edges, unique ids, edge endpoints
// that exist, branch tags only (and always) on condition-node edges, valid
// per-kind node configs, and no cycles. It runs when a definition is saved
// and again before each traversal.
func ValidateGraph(def *WorkflowDefinition) error {
	problems := make([]string, 0)

	if !slices.Contains(KnownTriggerKinds, def.Trigger) {
		problems = append(problems, fmt.Sprintf("unknown trigger kind %q", def.Trigger))
	}

	if len(def.Nodes) == 0 {
		problems = append(problems, "definition has no nodes")
	}

	nodesByID := make(map[string]*Node, len(def.Nodes))
	triggerCount := 0

	for _, node := range def.Nodes {
		if node.ID == "" {
			problems = append(problems, "node with empty id")

			continue
		}

		if _, dup := nodesByID[node.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate node id %q", node.ID))

			continue
		}

		nodesByID[node.ID] = node

		if !slices.Contains(KnownNodeKinds, node.Kind) {
			problems = append(problems, fmt.Sprintf("node %s: unknown kind %q", node.ID, node.Kind))

			continue
		}

		if node.Kind == NodeTrigger {
			triggerCount++
		}

		if node.Config == nil {
			problems = append(problems, fmt.Sprintf("node %s: missing config", node.ID))

			continue
		}

		if node.Config.ConfigKind() != node.Kind {
			problems = append(problems, fmt.Sprintf("node %s: config is for kind %q, node is %q",
				node.ID, node.Config.ConfigKind(), node.Kind))

			continue
		}

		if err := node.Config.Validate(); err != nil {
			problems = append(problems, fmt.Sprintf("node %s: %v", node.ID, err))
		}
	}

	if triggerCount != 1 {
		problems = append(problems, fmt.Sprintf("definition must have exactly one trigger node, found %d", triggerCount))
	}

	problems = append(problems, validateEdges(def, nodesByID)...)

	if hasCycle(def, nodesByID) {
		problems = append(problems, "graph contains a cycle")
	}

	if len(problems) > 0 {
		return &DefinitionError{Problems: problems}
	}

	return nil
}

func validateEdges(def *WorkflowDefinition, nodesByID map[string]*Node) []string {
	problems := make([]string, 0)
	edgeIDs := make(map[string]struct{}, len(def.Edges))

	// Per condition node, which branch tags its outgoing edges carry.
	branchesSeen := make(map[string]map[bool]int)

	for _, edge := range def.Edges {
		if edge.ID == "" {
			problems = append(problems, "edge with empty id")

			continue
		}

		if _, dup := edgeIDs[edge.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate edge id %q", edge.ID))

			continue
		}

		edgeIDs[edge.ID] = struct{}{}

		source, sourceOK := nodesByID[edge.Source]
		if !sourceOK {
			problems = append(problems, fmt.Sprintf("edge %s: source %q does not exist", edge.ID, edge.Source))
		}

		target, targetOK := nodesByID[edge.Target]
		if !targetOK {
			problems = append(problems, fmt.Sprintf("edge %s: target %q does not exist", edge.ID, edge.Target))
		}

		if targetOK && target.Kind == NodeTrigger {
			problems = append(problems, fmt.Sprintf("edge %s: trigger node must have no incoming edges", edge.ID))
		}

		if !sourceOK {
			continue
		}

		if source.Kind == NodeCondition {
			if edge.Branch == nil {
				problems = append(problems, fmt.Sprintf("edge %s: edges leaving condition node %s require a branch tag", edge.ID, source.ID))

				continue
			}

			if branchesSeen[source.ID] == nil {
				branchesSeen[source.ID] = make(map[bool]int)
			}

			branchesSeen[source.ID][*edge.Branch]++
		} else if edge.Branch != nil {
			problems = append(problems, fmt.Sprintf("edge %s: branch tag is only valid on condition-node edges", edge.ID))
		}
	}

	for nodeID, branches := range branchesSeen {
		for branch, count := range branches {
			if count > 1 {
				problems = append(problems, fmt.Sprintf("condition node %s has %d edges tagged branch=%t", nodeID, count, branch))
			}
		}
	}

	return problems
}

// hasCycle runs Kahn's algorithm over the graph; any node left with incoming
// edges after the peel means a cycle.
func hasCycle(def *WorkflowDefinition, nodesByID map[string]*Node) bool {
	indegree := make(map[string]int, len(nodesByID))
	adjacency := make(map[string][]string, len(nodesByID))

	for id := range nodesByID {
		indegree[id] = 0
	}

	for _, edge := range def.Edges {
		if _, ok := nodesByID[edge.Source]; !ok {
			continue
		}

		if _, ok := nodesByID[edge.Target]; !ok {
			continue
		}

		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
		indegree[edge.Target]++
	}

	queue := make([]string, 0, len(indegree))
	for id, degree := range indegree {
		if degree == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++

		for _, next := range adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	return visited != len(indegree)
}
