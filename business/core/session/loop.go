package session

import "context"

// loop executes posted state changes one at a time until shutdown.
func (r *Reconciler) loop() {
	r.evHandler("session: loop: G started")
	defer r.evHandler("session: loop: G completed")

	for {
		select {
		case fn := <-r.actions:
			fn()
		case <-r.shut:
			return
		}
	}
}

// post queues a state change for the loop. It reports false if the
// session is shut down.
func (r *Reconciler) post(fn func()) bool {
	select {
	case r.actions <- fn:
		return true
	case <-r.shut:
		return false
	}
}

// do executes fn on the loop and waits for its result.
func (r *Reconciler) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	action := func() {
		errc <- fn()
	}

	select {
	case r.actions <- action:
	case <-ctx.Done():
		return ctx.Err()
	case <-r.shut:
		return ErrShutdown
	}

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-r.shut:
		return ErrShutdown
	}
}

// async runs call on its own goroutine and posts the function it returns
// back to the loop. Must be called from the loop.
func (r *Reconciler) async(call func(ctx context.Context) func()) {
	r.begin()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		apply := call(r.ctx)
		r.post(func() {
			defer r.end()
			apply()
		})
	}()
}

// begin and end track the requests that are still to be applied so
// Settle can wait for them.
func (r *Reconciler) begin() {
	if r.pending == 0 {
		r.idle = make(chan struct{})
	}
	r.pending++
}

func (r *Reconciler) end() {
	r.pending--
	if r.pending == 0 {
		close(r.idle)
	}
}

// =============================================================================

// kind identifies a slice of session state filled by provider requests.
type kind int

const (
	kindAccounts kind = iota
	kindBalance
	kindGasPrice
	kindChainID
	numKinds
)

// generations numbers the requests issued per kind. A result is applied
// only if no newer request or state change of its kind happened since it
// was issued.
type generations [numKinds]uint64

func (g *generations) next(k kind) uint64 {
	g[k]++
	return g[k]
}

func (g *generations) current(k kind, gen uint64) bool {
	return g[k] == gen
}

// reset invalidates every outstanding request.
func (g *generations) reset() {
	for k := range g {
		g[k]++
	}
}
