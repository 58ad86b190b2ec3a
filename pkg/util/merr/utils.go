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
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Code 返回给定错误对应的错误码。
// 非 merr 定义的错误统一返回 unexpected 错误码。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	var target morphError
	if errors.As(err, &target) {
		return target.code()
	}
	return errUnexpected.code()
}

// CategoryOf 根据错误码返回错误所属的分类。
func CategoryOf(err error) Category {
	code := Code(err)
	switch {
	case code >= 100 && code < 200:
		return CategoryArgument
	case code >= 200 && code < 300:
		return CategoryConfiguration
	case code >= 300 && code < 400:
		return CategoryConflict
	case code >= 400 && code < 500:
		return CategoryVersion
	case code >= 500 && code < 600:
		return CategoryValue
	case code >= 600 && code < 700:
		return CategoryAsync
	default:
		return CategoryUnknown
	}
}

func GetErrorType(err error) ErrorType {
	var target morphError
	if errors.As(err, &target) {
		return target.errType
	}
	return SystemError
}

// Argument related
func WrapErrInvalidArgument(format string, args ...any) error {
	return withMsg(ErrInvalidArgument, format, args...)
}

// Configuration related
func WrapErrTypeInfoMissing(owner, field string, hint string) error {
	err := withMsg(ErrTypeInfoMissing, "Cannot get the declared type of property %q on %q", field, owner)
	return withHint(err, hint)
}

func WrapErrConstructorMissing(what any) error {
	return withMsg(ErrConstructorMissing, "Expected a constructor type, got %v", what)
}

func WrapErrTargetInvalid(format string, args ...any) error {
	return withMsg(ErrTargetInvalid, format, args...)
}

func WrapErrBackendNotFound(name string) error {
	return wrapFields(ErrBackendNotFound, value("backend", name))
}

// Conflict related
func WrapErrPropertyRedefined(owner, field string, base ...string) error {
	if len(base) > 0 && base[0] != "" {
		return withMsg(ErrPropertyRedefined, "Cannot redefine property %q on %q, it is inherited from %q", field, owner, base[0])
	}
	return withMsg(ErrPropertyRedefined, "Cannot redefine property %q on %q", field, owner)
}

func WrapErrTagDuplicated(tag, owner, field, usedBy string) error {
	return withMsg(ErrTagDuplicated, "Cannot use %q for property %q on %q, %q tag already used by property %q",
		tag, field, owner, tag, usedBy)
}

func WrapErrTypeRedefined(owner string) error {
	return withMsg(ErrTypeRedefined, "Cannot redefine the type serializer of %q", owner)
}

func WrapErrKindConflict(owner, existing, requested string) error {
	return withMsg(ErrKindConflict, "Cannot use %q as a %s, it is already a %s", owner, requested, existing)
}

func WrapErrInheritanceConflict(owner, kind, ancestor, ancestorKind string) error {
	return withMsg(ErrInheritanceConflict, "Cannot make %q a %s, it inherits from %q which is a %s",
		owner, kind, ancestor, ancestorKind)
}

// Version related
func WrapErrVersionMismatch(owner string, found, expected string) error {
	return withMsg(ErrVersionMismatch, "Metadata version mismatch for %q: found %s, expected %s; "+
		"incompatible copies of the library are loaded together", owner, found, expected)
}

// Value related
func WrapErrValueType(expected string, actual any) error {
	return withMsg(ErrValueType, "Expected %s, got %T", expected, actual)
}

func WrapErrValueTypeMsg(format string, args ...any) error {
	return withMsg(ErrValueType, format, args...)
}

func WrapErrValueNull(hint string) error {
	return withHint(ErrValueNull, hint)
}

func WrapErrValueUndefined(hint string) error {
	return withHint(ErrValueUndefined, hint)
}

func WrapErrSerializerIncomplete(fn string, typeName string, hint string) error {
	err := withMsg(ErrSerializerIncomplete, "No %q function available for type %q", fn, typeName)
	return withHint(err, hint)
}

func WrapErrDepthExceeded(limit int) error {
	return wrapFields(ErrDepthExceeded, value("limit", limit))
}

func WrapErrConversion(err error, msg ...string) error {
	if err == nil {
		return nil
	}
	wrapped := wrapFieldsWithDesc(ErrConversion, err.Error())
	if len(msg) > 0 {
		wrapped = errors.Wrap(wrapped, strings.Join(msg, "->"))
	}
	return wrapped
}

// Async related
func WrapErrAsyncMisuse(entrypoint string) error {
	return withMsg(ErrAsyncMisuse, "Asynchronous serializer detected, use %s instead", entrypoint)
}

func withMsg(err morphError, format string, args ...any) morphError {
	err.msg = fmt.Sprintf(format, args...)
	err.detail = err.msg
	return err
}

func withHint(err morphError, hint string) error {
	if hint != "" {
		err.msg += "; Hint: " + hint
		err.detail = err.msg
	}
	return err
}

func wrapFields(err morphError, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.detail = err.msg
	return err
}

func wrapFieldsWithDesc(err morphError, desc string, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.msg += ": " + desc
	err.detail = err.msg
	return err
}

type errorField interface {
	String() string
}

type valueField struct {
	name  string
	value any
}

func value(name string, value any) valueField {
	return valueField{
		name,
		value,
	}
}

func (f valueField) String() string {
	return fmt.Sprintf("%s=%v", f.name, f.value)
}
