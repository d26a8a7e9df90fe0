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

const (
	CanceledCode int32 = 10000
	TimeoutCode  int32 = 10001
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

// 叶子错误统一在这里定义。
// WARN: 新增错误前先确认下面已有的错误能否复用。
// 命名规则：Err + 相关前缀 + 错误名
var (
	// 编解码相关
	ErrUnsupportedType    = newBinnError("unsupported type", 100, false, WithErrorType(InputError))
	ErrNameTooLong        = newBinnError("property name too long", 101, false, WithErrorType(InputError))
	ErrTruncatedInput     = newBinnError("truncated input", 102, false, WithErrorType(InputError))
	ErrMalformedInput     = newBinnError("malformed input", 103, false, WithErrorType(InputError))
	ErrListNotHomogeneous = newBinnError("list items are not homogeneous", 104, false, WithErrorType(InputError))
	ErrCyclicReference    = newBinnError("cyclic reference", 105, false, WithErrorType(InputError))
	ErrDepthExceeded      = newBinnError("nesting depth exceeded", 106, false, WithErrorType(InputError))
	ErrSizeOutOfRange     = newBinnError("size out of range", 107, false, WithErrorType(InputError))

	// IO 相关
	ErrIoFailed      = newBinnError("IO failed", 1001, false)
	ErrIoUnexpectEOF = newBinnError("unexpected EOF", 1002, true)

	// 参数相关
	ErrParameterInvalid = newBinnError("invalid parameter", 1100, false)
	ErrParameterMissing = newBinnError("missing parameter", 1101, false)

	// 帧相关
	ErrFrameTooLarge = newBinnError("frame too large", 1200, false, WithErrorType(InputError))

	// 不要导出，仅用于把未知错误转换为 binnError
	errUnexpected = newBinnError("unexpected error", (1<<16)-1, false)

	// 通用
	ErrOperationNotSupported = newBinnError("unsupported operation", 3000, false)
)

type errorOption func(*binnError)

func WithDetail(detail string) errorOption {
	return func(err *binnError) {
		err.detail = detail
	}
}

func WithErrorType(etype ErrorType) errorOption {
	return func(err *binnError) {
		err.errType = etype
	}
}

type binnError struct {
	msg       string
	detail    string
	retriable bool
	errCode   int32
	errType   ErrorType
}

func newBinnError(msg string, code int32, retriable bool, options ...errorOption) binnError {
	err := binnError{
		msg:       msg,
		detail:    msg,
		retriable: retriable,
		errCode:   code,
	}

	for _, option := range options {
		option(&err)
	}
	return err
}

func (e binnError) code() int32 {
	return e.errCode
}

func (e binnError) Error() string {
	return e.msg
}

func (e binnError) Detail() string {
	return e.detail
}

func (e binnError) Is(err error) bool {
	cause := errors.Cause(err)
	if cause, ok := cause.(binnError); ok {
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
	// 多错误的 cause 约定为最后一个错误
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
