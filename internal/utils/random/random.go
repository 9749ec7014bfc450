package random

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// ErrEmpty is returned when drawing from an exhausted pool.
var ErrEmpty = errors.New("pool is empty")

// Intn returns a uniform value in [0, n) from crypto/rand.
func Intn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("invalid range %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("failed to generate random number: %w", err)
	}
	return int(v.Int64()), nil
}

// Shuffle performs a cryptographically secure in-place shuffle.
func Shuffle[T any](slice []T) error {
	for i := len(slice) - 1; i > 0; i-- {
		j, err := Intn(i + 1)
		if err != nil {
			return err
		}
		slice[i], slice[j] = slice[j], slice[i]
	}
	return nil
}

// Sample picks k distinct elements uniformly without replacement. The
// input slice is not modified.
func Sample[T any](items []T, k int) ([]T, error) {
	if k < 0 || k > len(items) {
		return nil, fmt.Errorf("cannot sample %d of %d", k, len(items))
	}

	cp := make([]T, len(items))
	copy(cp, items)
	if err := Shuffle(cp); err != nil {
		return nil, err
	}
	return cp[:k:k], nil
}

// Pool is a candidate set drawn without replacement: each Draw picks a
// uniform index into the remaining candidates and removes it.
type Pool[T any] struct {
	items []T
}

// NewPool copies items into a new pool.
func NewPool[T any](items []T) *Pool[T] {
	cp := make([]T, len(items))
	copy(cp, items)
	return &Pool[T]{items: cp}
}

func (p *Pool[T]) Len() int {
	return len(p.items)
}

func (p *Pool[T]) Draw() (T, error) {
	var zero T
	n := len(p.items)
	if n == 0 {
		return zero, ErrEmpty
	}

	i, err := Intn(n)
	if err != nil {
		return zero, err
	}

	v := p.items[i]
	p.items[i] = p.items[n-1]
	p.items[n-1] = zero
	p.items = p.items[:n-1]
	return v, nil
}
