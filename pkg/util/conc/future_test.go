// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package conc

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"

	"github.com/lk2023060901/morph/pkg/util/merr"
)

type FutureSuite struct {
	suite.Suite
}

func (s *FutureSuite) TestFuture() {
	const sleepDuration = 200 * time.Millisecond
	errFuture := Go(func() (any, error) {
		time.Sleep(sleepDuration)
		return nil, errors.New("errFuture")
	})

	resultFuture := Go(func() (int, error) {
		time.Sleep(sleepDuration)
		return 10, nil
	})

	s.False(errFuture.Done())
	s.False(resultFuture.Done())
	s.Error(errFuture.Err())
	s.True(errFuture.Done())
	s.False(errFuture.OK())

	s.Equal(10, resultFuture.Value())
	s.True(resultFuture.OK())
	s.NoError(resultFuture.Err())

	value, err := resultFuture.Await()
	s.NoError(err)
	s.Equal(10, value)
}

func (s *FutureSuite) TestResolvedRejected() {
	resolved := Resolved[any]("ready")
	s.True(resolved.Done())
	s.Equal("ready", resolved.Value())

	rejected := Rejected[any](errors.New("nope"))
	s.True(rejected.Done())
	s.EqualError(rejected.Err(), "nope")

	select {
	case <-resolved.Inner():
	default:
		s.Fail("resolved future must be done")
	}
}

func (s *FutureSuite) TestBlockOnAll() {
	slow := Go(func() (int, error) {
		time.Sleep(50 * time.Millisecond)
		return 0, errors.New("fourth")
	})
	futures := []*Future[int]{
		Resolved(1),
		Go(func() (int, error) { return 2, nil }),
	}
	s.NoError(BlockOnAll(futures...))

	futures = append(futures, Rejected[int](errors.New("third")), slow)
	s.EqualError(BlockOnAll(futures...), "third")
	s.True(slow.Done())
}

func (s *FutureSuite) TestPool() {
	pool := NewPool[int](2, WithPreAlloc(true))
	defer pool.Release()
	s.Equal(2, pool.Cap())

	var counter atomic.Int32
	futures := make([]*Future[int], 0, 8)
	for i := 0; i < 8; i++ {
		i := i
		futures = append(futures, pool.Submit(func() (int, error) {
			counter.Add(1)
			return i * 2, nil
		}))
	}
	s.NoError(BlockOnAll(futures...))
	s.EqualValues(8, counter.Load())
	s.Equal(14, futures[7].Value())
}

func (s *FutureSuite) TestPoolRecoversPanic() {
	pool := NewPool[any](1)
	defer pool.Release()

	future := pool.Submit(func() (any, error) {
		panic("boom")
	})
	s.ErrorIs(future.Err(), merr.ErrConversion)
	s.Contains(future.Err().Error(), "boom")
}

func (s *FutureSuite) TestPoolResize() {
	pool := NewPool[any](1)
	defer pool.Release()

	s.NoError(pool.Resize(4))
	s.Equal(4, pool.Cap())
	s.ErrorIs(pool.Resize(0), merr.ErrInvalidArgument)

	unbounded := NewPool[any](0)
	defer unbounded.Release()
	s.Equal(-1, unbounded.Cap())
	s.ErrorIs(unbounded.Resize(4), merr.ErrInvalidArgument)
	s.Equal(-1, unbounded.Cap())
}

func (s *FutureSuite) TestPoolOptions() {
	var before atomic.Int32
	pool := NewPool[any](1, WithNonBlocking(true), WithExpiryDuration(time.Second),
		WithPreHandler(func() { before.Add(1) }))
	defer pool.Release()

	release := make(chan struct{})
	started := make(chan struct{})
	first := pool.Submit(func() (any, error) {
		close(started)
		<-release
		return "done", nil
	})
	<-started
	s.Error(pool.Submit(func() (any, error) { return nil, nil }).Err())

	close(release)
	s.Equal("done", first.Value())
	s.EqualValues(1, before.Load())
}

func TestFuture(t *testing.T) {
	suite.Run(t, new(FutureSuite))
}
