package table

// NumericQueue holds stray numeric tokens waiting to be redistributed into
// neighbouring rows. Tokens are taken from the front; displaced values go to
// the back.
type NumericQueue struct {
	items []string
}

// Len returns the number of queued tokens.
func (q *NumericQueue) Len() int { return len(q.items) }

// PushFront places tokens ahead of everything already queued, keeping their order.
func (q *NumericQueue) PushFront(tokens ...string) {
	if len(tokens) == 0 {
		return
	}
	items := make([]string, 0, len(tokens)+len(q.items))
	items = append(items, tokens...)
	q.items = append(items, q.items...)
}

// PushBack appends a token at the tail.
func (q *NumericQueue) PushBack(token string) {
	q.items = append(q.items, token)
}

// PopFront removes and returns the head token.
func (q *NumericQueue) PopFront() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	tok := q.items[0]
	q.items = q.items[1:]
	return tok, true
}

// PopBack removes and returns the tail token.
func (q *NumericQueue) PopBack() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	tok := q.items[len(q.items)-1]
	q.items = q.items[:len(q.items)-1]
	return tok, true
}

// Items returns a copy of the queued tokens, head first.
func (q *NumericQueue) Items() []string {
	out := make([]string, len(q.items))
	copy(out, q.items)
	return out
}
