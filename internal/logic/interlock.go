package logic

// Interlock is a group of actuators sharing a power budget. At most one member
// may be moving at any time.
//
// The group holds references only; the registry owns the actuators.
// Membership is fixed at construction.
type Interlock struct {
	members []*Actuator
}

// NewInterlock creates a group from the given actuators.
func NewInterlock(members ...*Actuator) *Interlock {
	m := make([]*Actuator, len(members))
	copy(m, members)
	return &Interlock{members: m}
}

// Contains reports whether a is a member.
func (g *Interlock) Contains(a *Actuator) bool {
	for _, m := range g.members {
		if m == a {
			return true
		}
	}
	return false
}

// Members returns the names of the members.
func (g *Interlock) Members() []string {
	names := make([]string, len(g.members))
	for i, m := range g.members {
		names[i] = m.Name()
	}
	return names
}

// Preempt stops every moving member other than a. Last writer wins: there is
// no negotiation and no queueing. It returns the number of members stopped.
func (g *Interlock) Preempt(a *Actuator) int {
	if !g.Contains(a) {
		return 0
	}
	n := 0
	for _, m := range g.members {
		if m == a || m.Direction() == Stop {
			continue
		}
		m.stop(ReasonInterlock)
		n++
	}
	return n
}
