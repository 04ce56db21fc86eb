package csa

import (
	"csaplanner.dev/internal/timetable"
	"csaplanner.dev/internal/transfers"
)

// Params tune a scan pass.
type Params struct {
	MaxTransfers int
	// WindowSpan caps how far past the window start the sweep may run, in minutes.
	WindowSpan int
	// Slack is how long past the best destination arrival departures are still scanned.
	Slack int
	// MaxDepth bounds the transfer BFS.
	MaxDepth int
	// MeaningfulTransfer stops the BFS from expanding past walks longer than this.
	MeaningfulTransfer int
	Frontier           FrontierOptions
}

// DefaultParams returns the scan defaults.
func DefaultParams() Params {
	return Params{
		MaxTransfers:       5,
		WindowSpan:         240,
		Slack:              30,
		MaxDepth:           10,
		MeaningfulTransfer: 10,
		Frontier: FrontierOptions{
			Cap:                15,
			TransferPenalty:    15,
			WalkDistanceWeight: 1.0 / 80,
		},
	}
}

// Scanner runs scan passes over shared read-only indices. It is safe for
// concurrent use; every pass owns its own state.
type Scanner struct {
	conns  []timetable.Connection
	graph  *transfers.Graph
	params Params
}

// NewScanner creates a scanner over a sorted connection array.
func NewScanner(conns []timetable.Connection, graph *transfers.Graph, params Params) *Scanner {
	return &Scanner{conns: conns, graph: graph, params: params}
}

// Connections returns the shared connection array.
func (s *Scanner) Connections() []timetable.Connection {
	return s.conns
}

// Pass identifies one (origin, window) scan.
type Pass struct {
	Origin      Endpoint
	WindowStart int
	// StartIndex is the first connection departing at or after WindowStart.
	StartIndex int
}

// Stats describe a finished pass.
type Stats struct {
	Scanned   int
	Journeys  int
	Pulled    int
	EarlyExit bool
}

type visitKey struct {
	stop      timetable.StopID
	arrival   int
	transfers int
	boarded   bool
}

// PassContext is the private mutable state of one pass.
type PassContext struct {
	scanner      *Scanner
	pass         Pass
	destinations map[timetable.StopID]Endpoint
	arena        *arena
	visited      map[visitKey]struct{}
	// trips maps a trip key to the last journey created riding it, on a
	// frontier or not.
	trips       map[string]int
	bestArrival int
	reached     bool
	stats       Stats
}

// Scan runs one pass and returns its context for reconstruction.
func (s *Scanner) Scan(pass Pass, destinations map[timetable.StopID]Endpoint) *PassContext {
	pc := &PassContext{
		scanner:      s,
		pass:         pass,
		destinations: destinations,
		arena:        newArena(s.params.Frontier),
		visited:      make(map[visitKey]struct{}),
		trips:        make(map[string]int),
	}
	pc.run()
	pc.stats.Journeys = len(pc.arena.journeys)
	return pc
}

// Stats returns the pass counters.
func (pc *PassContext) Stats() Stats {
	return pc.stats
}

// BestArrival returns the earliest boarded arrival at any destination stop.
func (pc *PassContext) BestArrival() (int, bool) {
	return pc.bestArrival, pc.reached
}

func (pc *PassContext) isDestination(stop timetable.StopID) bool {
	_, ok := pc.destinations[stop]
	return ok
}

func (pc *PassContext) admit(j Journey) (int, bool) {
	id, ok := pc.arena.admit(j, pc.isDestination(j.Stop))
	if ok && j.Boarded && pc.isDestination(j.Stop) && (!pc.reached || j.Arrival < pc.bestArrival) {
		pc.bestArrival = j.Arrival
		pc.reached = true
	}
	return id, ok
}

func (pc *PassContext) run() {
	p := pc.scanner.params
	origin := pc.pass.Origin

	seed := Journey{
		Stop:      origin.Stop,
		Arrival:   pc.pass.WindowStart + origin.WalkTime,
		Prev:      NoJourney,
		Kind:      EdgeNone,
		Departure: pc.pass.WindowStart,
		Origin:    origin,
	}
	id, _ := pc.admit(seed)
	pc.visited[pc.visitKeyOf(&seed)] = struct{}{}
	pc.propagate(id)

	horizon := pc.pass.WindowStart + p.WindowSpan
	conns := pc.scanner.conns
	for i := max(pc.pass.StartIndex, 0); i < len(conns); i++ {
		c := &conns[i]
		if c.Departure > horizon {
			break
		}
		if pc.reached && c.Departure > pc.bestArrival+p.Slack {
			pc.stats.EarlyExit = true
			break
		}
		pc.stats.Scanned++

		from, ok := pc.board(c)
		if !ok {
			from, ok = pc.pull(c)
			if !ok {
				continue
			}
		}

		prev := pc.arena.journeys[from]
		transfersUsed := prev.transfersAfter(c)
		if transfersUsed > p.MaxTransfers {
			continue
		}

		departure := prev.Departure
		if !prev.Boarded {
			departure = c.Departure
		}

		candidate := Journey{
			Stop:      c.To,
			Arrival:   c.Arrival,
			PrevStop:  c.From,
			Prev:      from,
			Kind:      EdgeRide,
			Conn:      i,
			TripKey:   c.Key,
			Boarded:   true,
			Transfers: transfersUsed,
			Departure: departure,
			Origin:    prev.Origin,
		}
		id, ok := pc.admit(candidate)
		if id == NoJourney {
			// covered here, but the trip may still win further down the line
			id = pc.arena.record(candidate)
		}
		pc.trips[c.Key] = id
		if ok {
			pc.propagate(id)
		}
	}
}

// board picks the journey that rides c. Staying on the vehicle wins unless a
// frontier journey at c.From can board it with fewer transfers.
func (pc *PassContext) board(c *timetable.Connection) (int, bool) {
	from, ok := pc.boardable(c)
	id, riding := pc.trips[c.Key]
	if !riding {
		return from, ok
	}
	onboard := &pc.arena.journeys[id]
	if onboard.Stop != c.From || onboard.Arrival > c.Departure {
		return from, ok
	}
	if ok && pc.arena.journeys[from].transfersAfter(c) < onboard.Transfers {
		return from, true
	}
	return id, true
}

// boardable picks, among the frontier journeys at c.From that are there in
// time, the one that rides c with the fewest transfers, then the best composite.
func (pc *PassContext) boardable(c *timetable.Connection) (int, bool) {
	best := NoJourney
	bestTransfers := 0
	bestComposite := 0.0
	for _, id := range pc.arena.frontier[c.From] {
		j := &pc.arena.journeys[id]
		if j.Arrival > c.Departure {
			continue
		}
		t := j.transfersAfter(c)
		score := pc.arena.opts.composite(j)
		if best == NoJourney || t < bestTransfers || (t == bestTransfers && score < bestComposite) {
			best, bestTransfers, bestComposite = id, t, score
		}
	}
	return best, best != NoJourney
}

// pull looks one transfer hop back through the reverse index for a journey
// that can walk to c.From in time and admits that walk.
func (pc *PassContext) pull(c *timetable.Connection) (int, bool) {
	for _, e := range pc.scanner.graph.Incoming(c.From) {
		for _, id := range pc.arena.frontier[e.From] {
			src := pc.arena.journeys[id]
			if src.Arrival+e.Minutes > c.Departure {
				continue
			}
			walked := pc.walk(&src, e)
			key := pc.visitKeyOf(&walked)
			if _, seen := pc.visited[key]; seen {
				continue
			}
			pc.visited[key] = struct{}{}
			if nid, ok := pc.admit(walked); ok {
				pc.stats.Pulled++
				return nid, true
			}
		}
	}
	return NoJourney, false
}

func (pc *PassContext) walk(src *Journey, e transfers.Edge) Journey {
	return Journey{
		Stop:      e.To,
		Arrival:   src.Arrival + e.Minutes,
		PrevStop:  src.Stop,
		Prev:      src.ID,
		Kind:      EdgeTransfer,
		Transfer:  e,
		Boarded:   src.Boarded,
		Transfers: src.Transfers,
		Departure: src.Departure,
		Origin:    src.Origin,
	}
}

func (pc *PassContext) visitKeyOf(j *Journey) visitKey {
	return visitKey{stop: j.Stop, arrival: j.Arrival, transfers: j.Transfers, boarded: j.Boarded}
}

// propagate runs the bounded transfer BFS from an admitted journey.
func (pc *PassContext) propagate(start int) {
	p := pc.scanner.params
	type item struct {
		id    int
		depth int
	}

	queue := []item{{id: start}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]
		if it.depth >= p.MaxDepth {
			continue
		}

		src := pc.arena.journeys[it.id]
		for _, e := range pc.scanner.graph.Outgoing(src.Stop) {
			walked := pc.walk(&src, e)
			key := pc.visitKeyOf(&walked)
			if _, seen := pc.visited[key]; seen {
				continue
			}
			pc.visited[key] = struct{}{}

			id, ok := pc.admit(walked)
			if !ok || e.Minutes > p.MeaningfulTransfer {
				continue
			}
			queue = append(queue, item{id: id, depth: it.depth + 1})
		}
	}
}
