// Package population holds the mutable agent state of an experiment.
//
// Agents are identified by ids in [0, N). A status arena indexed by agent id
// records each agent's SIR compartment, and every vertex keeps an ordered
// list of the agent ids currently located there. Together the lists
// partition {0..N-1}: every agent is on exactly one vertex.
package population

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Status is an agent's SIR compartment.
type Status uint8

const (
	Susceptible Status = iota
	Infected
	Recovered
)

// String returns the single-letter compartment name.
func (s Status) String() string {
	switch s {
	case Susceptible:
		return "S"
	case Infected:
		return "I"
	case Recovered:
		return "R"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Counts is a per-compartment agent count.
type Counts struct {
	S int `json:"S"`
	I int `json:"I"`
	R int `json:"R"`
}

// Total returns S+I+R.
func (c Counts) Total() int {
	return c.S + c.I + c.R
}

// Population is the status arena plus per-vertex membership lists.
// It is owned by a single experiment and is not safe for concurrent use.
type Population struct {
	status  []Status
	members [][]int
}

// New assigns exactly counts.S, counts.I and counts.R statuses in a random
// order and spreads the agents over the given number of vertices.
//
// Each vertex v draws a uniform weight u_v and targets round(N·u_v/Σu)
// agents. The rounding remainder is then corrected one agent at a time at
// uniformly chosen vertices, never taking a vertex below zero. Agents fill
// contiguous id ranges, vertex by vertex.
func New(counts Counts, vertices int, rng *rand.Rand) (*Population, error) {
	if counts.S < 0 || counts.I < 0 || counts.R < 0 {
		return nil, fmt.Errorf("initialize population: negative compartment count %+v", counts)
	}
	if vertices < 1 {
		return nil, fmt.Errorf("initialize population: need at least one vertex, got %d", vertices)
	}

	n := counts.Total()
	status := make([]Status, n)
	for i := counts.S; i < counts.S+counts.I; i++ {
		status[i] = Infected
	}
	for i := counts.S + counts.I; i < n; i++ {
		status[i] = Recovered
	}
	rng.Shuffle(n, func(i, j int) {
		status[i], status[j] = status[j], status[i]
	})

	targets := occupancyTargets(n, vertices, rng)

	members := make([][]int, vertices)
	next := 0
	for v, k := range targets {
		members[v] = make([]int, k)
		for j := range members[v] {
			members[v][j] = next
			next++
		}
	}

	return &Population{status: status, members: members}, nil
}

func occupancyTargets(n, vertices int, rng *rand.Rand) []int {
	weights := make([]float64, vertices)
	sum := 0.0
	for v := range weights {
		weights[v] = rng.Float64()
		sum += weights[v]
	}
	if sum == 0 {
		for v := range weights {
			weights[v] = 1
		}
		sum = float64(vertices)
	}

	targets := make([]int, vertices)
	total := 0
	for v, u := range weights {
		targets[v] = int(math.RoundToEven(u / sum * float64(n)))
		total += targets[v]
	}

	for diff := n - total; diff != 0; {
		v := rng.IntN(vertices)
		if diff > 0 {
			targets[v]++
			diff--
			continue
		}
		if targets[v] == 0 {
			continue
		}
		targets[v]--
		diff++
	}
	return targets
}

// FromMembership builds a population from explicit state. The membership
// lists must partition the status arena's ids.
func FromMembership(status []Status, members [][]int) (*Population, error) {
	p := &Population{status: status, members: members}
	if err := p.CheckPartition(); err != nil {
		return nil, err
	}
	return p, nil
}

// N returns the number of agents.
func (p *Population) N() int {
	return len(p.status)
}

// Vertices returns the number of vertices.
func (p *Population) Vertices() int {
	return len(p.members)
}

// Status returns the compartment of agent a.
func (p *Population) Status(a int) Status {
	return p.status[a]
}

// Statuses returns the status arena. The slice is shared and must not be
// modified; use Transition to change an agent's status.
func (p *Population) Statuses() []Status {
	return p.status
}

// Occupants returns the agents located at v, in list order. The slice is
// shared and must not be modified.
func (p *Population) Occupants(v int) []int {
	return p.members[v]
}

// Occupancy returns the number of agents at v.
func (p *Population) Occupancy(v int) int {
	return len(p.members[v])
}

// TransitionError reports a rejected status change.
type TransitionError struct {
	Agent    int
	From, To Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("agent %d: illegal transition %s→%s", e.Agent, e.From, e.To)
}

// Transition moves agent a one compartment forward, S→I or I→R. Any other
// change is rejected with a *TransitionError.
func (p *Population) Transition(a int, to Status) error {
	from := p.status[a]
	if to != from+1 || to > Recovered {
		return &TransitionError{Agent: a, From: from, To: to}
	}
	p.status[a] = to
	return nil
}

// Relocate replaces the membership lists wholesale. The caller guarantees
// that members is a partition of the agents over the same vertex count;
// CheckPartition verifies it.
func (p *Population) Relocate(members [][]int) {
	p.members = members
}

// Totals counts agents per compartment across all vertices.
func (p *Population) Totals() Counts {
	var c Counts
	for _, s := range p.status {
		switch s {
		case Susceptible:
			c.S++
		case Infected:
			c.I++
		case Recovered:
			c.R++
		}
	}
	return c
}

// Clone returns a deep copy.
func (p *Population) Clone() *Population {
	status := make([]Status, len(p.status))
	copy(status, p.status)
	members := make([][]int, len(p.members))
	for v, m := range p.members {
		members[v] = append([]int(nil), m...)
	}
	return &Population{status: status, members: members}
}

// PartitionError reports a broken membership invariant.
type PartitionError struct {
	Vertex int // -1 when the problem is not tied to a vertex
	Agent  int // -1 when the problem is not tied to an agent
	Reason string
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("population partition violated at vertex %d, agent %d: %s", e.Vertex, e.Agent, e.Reason)
}

// CheckPartition verifies that the membership lists hold every agent id
// exactly once and that every status is a known compartment.
func (p *Population) CheckPartition() error {
	seen := make([]int32, len(p.status))
	for i := range seen {
		seen[i] = -1
	}
	placed := 0
	for v, m := range p.members {
		for _, a := range m {
			if a < 0 || a >= len(p.status) {
				return &PartitionError{Vertex: v, Agent: a, Reason: "agent id out of range"}
			}
			if seen[a] >= 0 {
				return &PartitionError{Vertex: v, Agent: a, Reason: fmt.Sprintf("agent also located at vertex %d", seen[a])}
			}
			seen[a] = int32(v)
			placed++
		}
	}
	if placed != len(p.status) {
		for a, v := range seen {
			if v < 0 {
				return &PartitionError{Vertex: -1, Agent: a, Reason: "agent not located at any vertex"}
			}
		}
	}
	for a, s := range p.status {
		if s > Recovered {
			return &PartitionError{Vertex: int(seen[a]), Agent: a, Reason: fmt.Sprintf("unknown status %d", s)}
		}
	}
	return nil
}
