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
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/suite"
)

type ErrSuite struct {
	suite.Suite
}

func (s *ErrSuite) TestCode() {
	err := WrapErrPropertyRedefined("Rect", "Width")
	wrapped := errors.Wrap(err, "failed to register")
	s.ErrorIs(wrapped, ErrPropertyRedefined)
	s.Equal(Code(ErrPropertyRedefined), Code(wrapped))
	s.Equal(errUnexpected.errCode, Code(errors.New("plain")))
	s.Equal(int32(0), Code(nil))

	sameCodeErr := newMorphError("new error", ErrPropertyRedefined.errCode)
	s.True(sameCodeErr.Is(ErrPropertyRedefined))
	s.False(sameCodeErr.Is(ErrTagDuplicated))
}

func (s *ErrSuite) TestCategory() {
	s.Equal(CategoryArgument, CategoryOf(WrapErrInvalidArgument("nil value")))
	s.Equal(CategoryConfiguration, CategoryOf(WrapErrTypeInfoMissing("Book", "Author", "declare it")))
	s.Equal(CategoryConflict, CategoryOf(WrapErrTagDuplicated("age", "Person", "Years", "Age")))
	s.Equal(CategoryVersion, CategoryOf(WrapErrVersionMismatch("Book", "1.0.0", "2.0.0")))
	s.Equal(CategoryValue, CategoryOf(WrapErrValueNull("make it nullable")))
	s.Equal(CategoryAsync, CategoryOf(WrapErrAsyncMisuse("DeflateAsync")))
	s.Equal(CategoryUnknown, CategoryOf(errors.New("plain")))
	s.Equal("conflict", CategoryConflict.String())
}

func (s *ErrSuite) TestErrorType() {
	s.Equal(InputError, GetErrorType(WrapErrValueUndefined("make it optional")))
	s.Equal(SystemError, GetErrorType(WrapErrKindConflict("Position", "custom type", "property bag")))
	s.Equal(SystemError, GetErrorType(errors.New("plain")))
	s.Equal("input_error", InputError.String())
}

func (s *ErrSuite) TestMessages() {
	s.Equal("Value is null; Hint: make it nullable", WrapErrValueNull("make it nullable").Error())
	s.Equal("Value is undefined", WrapErrValueUndefined("").Error())
	s.Contains(WrapErrTagDuplicated("age", "Person", "Years", "Age").Error(), `"age" tag already used`)
	s.Contains(WrapErrPropertyRedefined("Rect", "Width", "Shape").Error(), "redefine")
	s.Contains(WrapErrSerializerIncomplete("up", "<unknown>", "").Error(), `"<unknown>"`)
	s.Equal("backend not found[backend=xml]", WrapErrBackendNotFound("xml").Error())
	s.Equal("Expected string, got int", WrapErrValueType("string", 1).Error())
}

func (s *ErrSuite) TestWrap() {
	s.ErrorIs(WrapErrInvalidArgument("value is %v", nil), ErrInvalidArgument)
	s.ErrorIs(WrapErrTypeInfoMissing("Book", "Author", ""), ErrTypeInfoMissing)
	s.ErrorIs(WrapErrConstructorMissing(nil), ErrConstructorMissing)
	s.ErrorIs(WrapErrTargetInvalid("field %q not found", "X"), ErrTargetInvalid)
	s.ErrorIs(WrapErrBackendNotFound("xml"), ErrBackendNotFound)
	s.ErrorIs(WrapErrPropertyRedefined("Rect", "Width"), ErrPropertyRedefined)
	s.ErrorIs(WrapErrTagDuplicated("age", "Person", "Years", "Age"), ErrTagDuplicated)
	s.ErrorIs(WrapErrTypeRedefined("Position"), ErrTypeRedefined)
	s.ErrorIs(WrapErrKindConflict("Position", "custom type", "property bag"), ErrKindConflict)
	s.ErrorIs(WrapErrInheritanceConflict("Circle", "custom type", "Shape", "property bag"), ErrInheritanceConflict)
	s.ErrorIs(WrapErrVersionMismatch("Book", "1.0.0", "2.0.0"), ErrVersionMismatch)
	s.ErrorIs(WrapErrValueType("number", "x"), ErrValueType)
	s.ErrorIs(WrapErrValueNull(""), ErrValueNull)
	s.ErrorIs(WrapErrValueUndefined(""), ErrValueUndefined)
	s.ErrorIs(WrapErrSerializerIncomplete("down", "Book", ""), ErrSerializerIncomplete)
	s.ErrorIs(WrapErrDepthExceeded(10), ErrDepthExceeded)
	s.ErrorIs(WrapErrConversion(errors.New("boom"), "custom down"), ErrConversion)
	s.ErrorIs(WrapErrAsyncMisuse("InflateAsync"), ErrAsyncMisuse)
	s.Nil(WrapErrConversion(nil))
}

func (s *ErrSuite) TestCombine() {
	var (
		errFirst  = errors.New("first")
		errSecond = errors.New("second")
		errThird  = errors.New("third")
	)

	err := Combine(errFirst, errSecond)
	s.True(errors.Is(err, errFirst))
	s.True(errors.Is(err, errSecond))
	s.False(errors.Is(err, errThird))

	s.Equal("first: second", err.Error())
}

func (s *ErrSuite) TestCombineWithNil() {
	err := errors.New("non-nil")

	err = Combine(nil, err)
	s.NotNil(err)
}

func (s *ErrSuite) TestCombineOnlyNil() {
	err := Combine(nil, nil)
	s.Nil(err)
}

func (s *ErrSuite) TestCombineCode() {
	err := Combine(WrapErrValueNull(""), WrapErrTagDuplicated("a", "T", "B", "A"))
	s.Equal(Code(ErrTagDuplicated), Code(err))
}

func TestErrors(t *testing.T) {
	suite.Run(t, new(ErrSuite))
}
