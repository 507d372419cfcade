// SPDX-License-Identifier: GPL-3.0-or-later
package fanout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/unifiedmail/go-inbox-unify/domain"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

func account(id int) domain.AccountDescriptor {
	return domain.AccountDescriptor{
		ID:     id,
		Name:   fmt.Sprintf("account-%d", id),
		Server: fmt.Sprintf("imap%d.example.org:993", id),
		Login:  fmt.Sprintf("user%d", id),
	}
}

func values(results []Result[int]) []int {
	vals := []int{}
	for _, r := range results {
		if r.OK {
			vals = append(vals, r.Value)
		}
	}
	sort.Ints(vals)
	return vals
}

func TestCollectEmpty(t *testing.T) {
	results, err := Collect[int](context.Background(), NewPool(4), nullLogger(), nil)
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestCollectAllSucceed(t *testing.T) {
	tasks := []Task[int]{}
	for i := 1; i <= 5; i++ {
		i := i
		tasks = append(tasks, Task[int]{
			Account: account(i),
			Run:     func() (int, error) { return i * 10, nil },
		})
	}

	results, err := Collect(context.Background(), NewPool(2), nullLogger(), tasks)
	assert.NoError(t, err)
	assert.Len(t, results, 5)
	assert.Equal(t, []int{10, 20, 30, 40, 50}, values(results))
}

func TestCollectIsolatesFailure(t *testing.T) {
	tasks := []Task[int]{
		{Account: account(1), Run: func() (int, error) { return 1, nil }},
		{Account: account(2), Run: func() (int, error) { return 0, errors.New("connection refused") }},
		{Account: account(3), Run: func() (int, error) { return 3, nil }},
	}

	results, err := Collect(context.Background(), NewPool(4), nullLogger(), tasks)
	assert.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, []int{1, 3}, values(results))

	for _, r := range results {
		if r.Account.ID == 2 {
			assert.False(t, r.OK)
		}
	}
}

func TestCollectIsolatesPanic(t *testing.T) {
	tasks := []Task[int]{
		{Account: account(1), Run: func() (int, error) { panic("backend blew up") }},
		{Account: account(2), Run: func() (int, error) { return 2, nil }},
	}

	results, err := Collect(context.Background(), NewPool(4), nullLogger(), tasks)
	assert.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, []int{2}, values(results))
}

func TestCollectNoContribution(t *testing.T) {
	tasks := []Task[int]{
		{Account: account(1), Run: func() (int, error) { return 0, ErrNoContribution }},
		{Account: account(2), Run: func() (int, error) { return 2, nil }},
	}

	results, err := Collect(context.Background(), NewPool(4), nullLogger(), tasks)
	assert.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, []int{2}, values(results))
}

func TestCollectInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	block := make(chan struct{})
	defer close(block)
	tasks := []Task[int]{
		{Account: account(1), Run: func() (int, error) { <-block; return 1, nil }},
	}

	cancel()
	_, err := Collect(ctx, NewPool(1), nullLogger(), tasks)
	assert.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollectBoundedTimeout(t *testing.T) {
	slow := make(chan struct{})
	defer close(slow)

	tasks := []Task[int]{
		{Account: account(1), Run: func() (int, error) { return 1, nil }},
		{Account: account(2), Run: func() (int, error) { <-slow; return 2, nil }},
		{Account: account(3), Run: func() (int, error) { return 3, nil }},
	}

	logger, hook := logtest.NewNullLogger()
	results, err := CollectBounded(context.Background(), NewPool(4), logger, tasks, 50*time.Millisecond)
	assert.NoError(t, err)
	assert.Len(t, results, 3)
	assert.Equal(t, []int{1, 3}, values(results))

	for _, r := range results {
		if r.Account.ID == 2 {
			assert.False(t, r.OK)
		}
	}

	// The expired slot is logged with the timeout sentinel.
	var logged error
	for _, entry := range hook.AllEntries() {
		if e, ok := entry.Data["error"].(error); ok {
			logged = e
		}
	}
	assert.ErrorIs(t, logged, domain.ErrTimeout)
}

func TestCollectBoundedAllFast(t *testing.T) {
	tasks := []Task[int]{
		{Account: account(1), Run: func() (int, error) { return 1, nil }},
		{Account: account(2), Run: func() (int, error) { return 2, nil }},
	}

	results, err := CollectBounded(context.Background(), NewPool(4), nullLogger(), tasks, time.Second)
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2}, values(results))
}

func TestPoolBoundsConcurrency(t *testing.T) {
	pool := NewPool(1)

	running := make(chan struct{}, 1)
	tasks := []Task[int]{}
	for i := 1; i <= 4; i++ {
		i := i
		tasks = append(tasks, Task[int]{
			Account: account(i),
			Run: func() (int, error) {
				select {
				case running <- struct{}{}:
				default:
					return 0, errors.New("pool admitted two tasks at once")
				}
				time.Sleep(5 * time.Millisecond)
				<-running
				return i, nil
			},
		})
	}

	results, err := Collect(context.Background(), pool, nullLogger(), tasks)
	assert.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, values(results))
}

func nullLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
