package directory

import (
	"errors"
	"sync"
)

// ErrNoServers is returned when a region has no configured game servers
var ErrNoServers = errors.New("no game servers available for region")

// RegionStatus is a point-in-time view of one region's pool
type RegionStatus struct {
	Servers       int `json:"servers"`
	ActiveMatches int `json:"active_matches"`
}

// Directory holds the per-region pool of game-server addresses. Assignments
// rotate round-robin; the per-region counters track matches currently hosted
// and are mutated only by match creation and match termination.
type Directory struct {
	mu      sync.Mutex
	servers map[string][]string
	next    map[string]int
	active  map[string]int
}

// New creates a directory from an immutable region → addresses table
func New(servers map[string][]string) *Directory {
	copied := make(map[string][]string, len(servers))
	for region, addrs := range servers {
		copied[region] = append([]string(nil), addrs...)
	}

	return &Directory{
		servers: copied,
		next:    make(map[string]int),
		active:  make(map[string]int),
	}
}

// Assign picks the next server for a region and counts the new match
func (d *Directory) Assign(region string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pool := d.servers[region]
	if len(pool) == 0 {
		return "", ErrNoServers
	}

	server := pool[d.next[region]%len(pool)]
	d.next[region]++
	d.active[region]++

	return server, nil
}

// Release returns a region's capacity slot when its match terminates
func (d *Directory) Release(region string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active[region] > 0 {
		d.active[region]--
	}
}

// HasRegion reports whether a region is configured
func (d *Directory) HasRegion(region string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.servers[region]) > 0
}

// ActiveMatches returns the number of matches currently hosted in a region
func (d *Directory) ActiveMatches(region string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.active[region]
}

// Status snapshots every region for the status endpoint
func (d *Directory) Status() map[string]RegionStatus {
	d.mu.Lock()
	defer d.mu.Unlock()

	status := make(map[string]RegionStatus, len(d.servers))
	for region, pool := range d.servers {
		status[region] = RegionStatus{
			Servers:       len(pool),
			ActiveMatches: d.active[region],
		}
	}

	return status
}
