package subvisor

import "errors"

var (
	// ErrRunnerAlive is returned by Subscription.Dispose when the
	// listener goroutine is still running. Stop the subscription and
	// wait for StatusStopped before disposing of it.
	ErrRunnerAlive = errors.New("subvisor: subscription listener is still alive")

	// ErrSubscriptionClosed is returned by Subscription.Listen when the
	// subscription has been stopped or disposed of and cannot be
	// restarted. Create a new Subscription instead.
	ErrSubscriptionClosed = errors.New("subvisor: subscription has been closed")

	// ErrNameTaken is returned by Subscriptions.Create when a
	// subscription is already registered under the same name.
	ErrNameTaken = errors.New("subvisor: subscription name already taken")

	// ErrWaitTimeout is returned by WaitFor when the timeout elapsed
	// before the state reached one of the target states.
	ErrWaitTimeout = errors.New("subvisor: timed out waiting for state transition")
)

// errHalted terminates a listener from inside the wrapped handler when
// the subscription left the running state. It never escapes the runner.
var errHalted = errors.New("subvisor: subscription halted")
