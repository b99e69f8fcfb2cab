package orders

type Status string

const (
	StatusPending      Status = "pending"
	StatusInTransition Status = "in_transition"
	StatusDelivered    Status = "delivered"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:      {StatusInTransition: true},
	StatusInTransition: {StatusDelivered: true},
	StatusDelivered:    {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// CanTransition reports whether from -> to is a forward move. Re-setting the current
// status is allowed.
func CanTransition(from, to Status) bool {
	return from == to || validNext[from][to]
}
