package simulator

import "fmt"

// Pool is a fixed set of simulators shared across workers with
// check-out/return semantics. A checkout is exclusive until returned.
type Pool struct {
	ch   chan Simulator
	size int
}

func NewPool(size int, factory func(i int) (Simulator, error)) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", size)
	}

	ch := make(chan Simulator, size)
	for i := 0; i < size; i++ {
		sim, err := factory(i)
		if err != nil {
			return nil, fmt.Errorf("build simulator %d: %w", i, err)
		}
		ch <- sim
	}

	return &Pool{ch: ch, size: size}, nil
}

// Get blocks until a simulator is available.
func (p *Pool) Get() Simulator {
	return <-p.ch
}

func (p *Pool) Put(s Simulator) {
	p.ch <- s
}

func (p *Pool) Size() int {
	return p.size
}
