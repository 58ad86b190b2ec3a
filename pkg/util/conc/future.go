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

type future interface {
	wait()
	OK() bool
	Err() error
}

// Future 表示一次异步计算的结果。
// 调用 Await 会阻塞直到计算完成，之后可以多次读取结果。
type Future[T any] struct {
	ch    chan struct{}
	value T
	err   error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{
		ch: make(chan struct{}),
	}
}

func (future *Future[T]) wait() {
	<-future.ch
}

func (future *Future[T]) complete(value T, err error) {
	future.value = value
	future.err = err
	close(future.ch)
}

// Await 等待计算完成并返回结果与错误。
func (future *Future[T]) Await() (T, error) {
	future.wait()
	return future.value, future.err
}

// Value 等待计算完成并只返回结果。
func (future *Future[T]) Value() T {
	future.wait()
	return future.value
}

// Done 判断计算是否已经完成，不会阻塞。
func (future *Future[T]) Done() bool {
	select {
	case <-future.ch:
		return true
	default:
		return false
	}
}

// OK 等待计算完成，返回是否没有发生错误。
func (future *Future[T]) OK() bool {
	future.wait()
	return future.err == nil
}

// Err 等待计算完成并返回错误。
func (future *Future[T]) Err() error {
	future.wait()
	return future.err
}

// Inner 返回计算完成时被关闭的 channel。
func (future *Future[T]) Inner() <-chan struct{} {
	return future.ch
}

// Go 在新的协程中执行 fn，并返回对应的 Future。
func Go[T any](fn func() (T, error)) *Future[T] {
	future := newFuture[T]()
	go func() {
		future.complete(fn())
	}()
	return future
}

// Resolved 返回一个已经以 value 完成的 Future。
func Resolved[T any](value T) *Future[T] {
	future := newFuture[T]()
	future.complete(value, nil)
	return future
}

// Rejected 返回一个已经以 err 失败的 Future。
func Rejected[T any](err error) *Future[T] {
	future := newFuture[T]()
	var zero T
	future.complete(zero, err)
	return future
}

// BlockOnAll 等待所有 Future 都完成后，再返回第一个遇到的错误。
func BlockOnAll[T future](futures ...T) error {
	var err error
	for i := range futures {
		if e := futures[i].Err(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
