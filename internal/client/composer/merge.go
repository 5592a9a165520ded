package composer

import "github.com/moajmalnk/skillmount-support/internal/ticket"

// MergeMessage appends incoming to list unless a message with the same id
// is already there. The sender's own reply arrives twice, once as the
// submit response and once as the live echo, in either order; this reducer
// keeps the list at exactly one copy. It never mutates its input.
func MergeMessage(list []ticket.Message, incoming ticket.Message) []ticket.Message {
	for _, m := range list {
		if m.ID == incoming.ID {
			return list
		}
	}

	out := make([]ticket.Message, len(list), len(list)+1)
	copy(out, list)
	return append(out, incoming)
}
