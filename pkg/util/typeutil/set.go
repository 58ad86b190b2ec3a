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

package typeutil

// Set 是基于 map 的无序集合。
type Set[T comparable] map[T]struct{}

// NewSet 创建包含 elements 的集合。
func NewSet[T comparable](elements ...T) Set[T] {
	set := make(Set[T], len(elements))
	set.Insert(elements...)
	return set
}

// Insert 插入元素，已存在的元素被忽略。
func (set Set[T]) Insert(elements ...T) {
	for _, e := range elements {
		set[e] = struct{}{}
	}
}

// Contain 判断 elements 是否全部在集合中。
func (set Set[T]) Contain(elements ...T) bool {
	for _, e := range elements {
		if _, ok := set[e]; !ok {
			return false
		}
	}
	return true
}

// Len 返回集合大小。
func (set Set[T]) Len() int {
	return len(set)
}
