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

package merr

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

type ErrorType int32

const (
	SystemError ErrorType = 0
	InputError  ErrorType = 1
)

var ErrorTypeName = map[ErrorType]string{
	SystemError: "system_error",
	InputError:  "input_error",
}

func (err ErrorType) String() string {
	return ErrorTypeName[err]
}

// Category 将错误码按照产生条件归类。
type Category int32

const (
	CategoryUnknown Category = iota
	CategoryArgument
	CategoryConfiguration
	CategoryConflict
	CategoryVersion
	CategoryValue
	CategoryAsync
)

var categoryName = map[Category]string{
	CategoryUnknown:       "unknown",
	CategoryArgument:      "argument",
	CategoryConfiguration: "configuration",
	CategoryConflict:      "conflict",
	CategoryVersion:       "version",
	CategoryValue:         "value",
	CategoryAsync:         "async",
}

func (c Category) String() string {
	return categoryName[c]
}

// Define leaf errors here,
// WARN: take care to add new error,
// check whether you can use the errors below before adding a new one.
// Name: Err + related prefix + error name
var (
	// Argument related
	ErrInvalidArgument = newMorphError("invalid argument", 100)

	// Configuration related, surfaced at registration or resolution time
	ErrTypeInfoMissing    = newMorphError("declared type information is missing", 200)
	ErrConstructorMissing = newMorphError("constructor is missing", 201)
	ErrTargetInvalid      = newMorphError("invalid registration target", 202)
	ErrBackendNotFound    = newMorphError("backend not found", 203)

	// Conflict related, surfaced at registration time
	ErrPropertyRedefined   = newMorphError("property redefined", 300)
	ErrTagDuplicated       = newMorphError("tag already used", 301)
	ErrTypeRedefined       = newMorphError("type serializer redefined", 302)
	ErrKindConflict        = newMorphError("metadata kind conflict", 303)
	ErrInheritanceConflict = newMorphError("inheritance kind conflict", 304)

	// Version related, never recovered
	ErrVersionMismatch = newMorphError("metadata version mismatch", 400)

	// Value related, surfaced at conversion time
	ErrValueType            = newMorphError("unexpected value type", 500, WithErrorType(InputError))
	ErrValueNull            = newMorphError("Value is null", 501, WithErrorType(InputError))
	ErrValueUndefined       = newMorphError("Value is undefined", 502, WithErrorType(InputError))
	ErrSerializerIncomplete = newMorphError("serializer incomplete", 503)
	ErrDepthExceeded        = newMorphError("maximum nesting depth exceeded", 504, WithErrorType(InputError))
	ErrConversion           = newMorphError("conversion failed", 505)

	// Async related
	ErrAsyncMisuse = newMorphError("asynchronous result on a synchronous call", 600)

	// Do NOT export this,
	// never allow programmer using this, keep only for converting unknown error to morphError
	errUnexpected = newMorphError("unexpected error", (1<<16)-1)
)

type errorOption func(*morphError)

func WithDetail(detail string) errorOption {
	return func(err *morphError) {
		err.detail = detail
	}
}

func WithErrorType(etype ErrorType) errorOption {
	return func(err *morphError) {
		err.errType = etype
	}
}

type morphError struct {
	msg     string
	detail  string
	errCode int32
	errType ErrorType
}

func newMorphError(msg string, code int32, options ...errorOption) morphError {
	err := morphError{
		msg:     msg,
		detail:  msg,
		errCode: code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e morphError) code() int32 {
	return e.errCode
}

func (e morphError) Error() string {
	return e.msg
}

func (e morphError) Detail() string {
	return e.detail
}

func (e morphError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(morphError); ok {
		return e.errCode == cause.errCode
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	// To make merr work for multi errors,
	// we need cause of multi errors, which defined as the last error
	if len(e.errs) == 2 {
		return e.errs[1]
	}

	return multiErrors{
		errs: e.errs[1:],
	}
}

func (e multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return multiErrors{
		errs,
	}
}
