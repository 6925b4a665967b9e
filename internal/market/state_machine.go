package market

import "sync"

type FeedState string

type FeedEvent string

const (
	StateDisconnected FeedState = "DISCONNECTED"
	StateConnected    FeedState = "CONNECTED"
	StateReconnecting FeedState = "RECONNECTING"
	StateFatal        FeedState = "FATAL"
)

const (
	EventSubscribed FeedEvent = "SUBSCRIBED"
	EventFailure    FeedEvent = "FAILURE"
)

// FeedStatus is the feed connection state plus the consecutive failure count of the current outage.
type FeedStatus struct {
	State   FeedState
	Attempt int
}

func (s FeedState) gaugeValue() float64 {
	switch s {
	case StateConnected:
		return 1
	case StateReconnecting:
		return 2
	case StateFatal:
		return 3
	default:
		return 0
	}
}

type retryMachine struct {
	mu         sync.Mutex
	status     FeedStatus
	maxRetries int
}

func newRetryMachine(maxRetries int) *retryMachine {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &retryMachine{status: FeedStatus{State: StateDisconnected}, maxRetries: maxRetries}
}

func (m *retryMachine) Apply(event FeedEvent) FeedStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = nextStatus(m.status, event, m.maxRetries)
	return m.status
}

func (m *retryMachine) Status() FeedStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func nextStatus(current FeedStatus, event FeedEvent, maxRetries int) FeedStatus {
	if current.State == StateFatal {
		return current
	}
	switch event {
	case EventSubscribed:
		return FeedStatus{State: StateConnected}
	case EventFailure:
		attempt := current.Attempt + 1
		if attempt >= maxRetries {
			return FeedStatus{State: StateFatal, Attempt: attempt}
		}
		return FeedStatus{State: StateReconnecting, Attempt: attempt}
	}
	return current
}
