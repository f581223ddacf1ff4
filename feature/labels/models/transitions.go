package models

var labelTransitions = map[LabelState][]LabelState{
	LabelIncoming:   {LabelMatched, LabelOrphaned},
	LabelMatched:    {LabelProcessing, LabelErrored, LabelIncoming},
	LabelProcessing: {LabelProcessed, LabelErrored},
	LabelErrored:    {LabelProcessing, LabelIncoming, LabelDiscarded},
	LabelOrphaned:   {LabelIncoming, LabelDiscarded},
}

// LabelStates lists every label state in lifecycle order.
var LabelStates = []LabelState{
	LabelIncoming, LabelMatched, LabelProcessing, LabelProcessed,
	LabelErrored, LabelOrphaned, LabelDiscarded,
}

// OrderStatuses lists every order status in lifecycle order.
var OrderStatuses = []OrderStatus{OrderOpen, OrderMatched, OrderShipped, OrderUnmatchedAlerted}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderOpen:             {OrderMatched, OrderUnmatchedAlerted},
	OrderMatched:          {OrderShipped, OrderUnmatchedAlerted, OrderOpen},
	OrderUnmatchedAlerted: {OrderOpen},
}

// CanTransitionLabel reports whether a label may move from one state to
// another. Staying in the same state is always allowed (field-only update).
func CanTransitionLabel(from, to LabelState) bool {
	if from == to {
		return ValidLabelState(from)
	}
	for _, s := range labelTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CanTransitionOrder is the order counterpart of CanTransitionLabel.
func CanTransitionOrder(from, to OrderStatus) bool {
	if from == to {
		return ValidOrderStatus(from)
	}
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidLabelState reports whether s is a known label state.
func ValidLabelState(s LabelState) bool {
	switch s {
	case LabelIncoming, LabelMatched, LabelProcessing, LabelProcessed, LabelErrored, LabelOrphaned, LabelDiscarded:
		return true
	}
	return false
}

// ValidOrderStatus reports whether s is a known order status.
func ValidOrderStatus(s OrderStatus) bool {
	switch s {
	case OrderOpen, OrderMatched, OrderShipped, OrderUnmatchedAlerted:
		return true
	}
	return false
}
