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
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Code 返回给定错误对应的错误码。
func Code(err error) int32 {
	if err == nil {
		return 0
	}

	cause := errors.Cause(err)
	switch specificErr := cause.(type) {
	case binnError:
		return specificErr.code()

	default:
		if errors.Is(specificErr, context.Canceled) {
			return CanceledCode
		} else if errors.Is(specificErr, context.DeadlineExceeded) {
			return TimeoutCode
		} else {
			return errUnexpected.code()
		}
	}
}

func IsRetryableErr(err error) bool {
	if err, ok := errors.Cause(err).(binnError); ok {
		return err.retriable
	}

	return false
}

// IsInputError 判断错误是否由输入数据本身导致（如损坏的字节流、不支持的值）。
func IsInputError(err error) bool {
	if err, ok := errors.Cause(err).(binnError); ok {
		return err.errType == InputError
	}
	return false
}

func IsCanceledOrTimeout(err error) bool {
	return errors.IsAny(err, context.Canceled, context.DeadlineExceeded)
}

// 编解码相关
func WrapErrUnsupportedType(typeName string, msg ...string) error {
	err := wrapFields(ErrUnsupportedType,
		value("type", typeName),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrUnsupportedTag(tag byte, offset int) error {
	return wrapFields(ErrUnsupportedType,
		value("tag", fmt.Sprintf("0x%02X", tag)),
		value("offset", offset),
	)
}

func WrapErrNameTooLong(name string, length int, limit int) error {
	if len(name) > 32 {
		name = name[:32] + "..."
	}
	return wrapFields(ErrNameTooLong,
		value("name", name),
		bound("length", length, 0, limit),
	)
}

func WrapErrTruncatedInput(offset, need, remaining int) error {
	return wrapFields(ErrTruncatedInput,
		value("offset", offset),
		value("need", need),
		value("remaining", remaining),
	)
}

func WrapErrMalformedInput(offset int, reason string) error {
	return wrapFieldsWithDesc(ErrMalformedInput, reason,
		value("offset", offset),
	)
}

func WrapErrListNotHomogeneous(offset int, expected, actual string) error {
	return wrapFields(ErrListNotHomogeneous,
		value("offset", offset),
		value("expected", expected),
		value("actual", actual),
	)
}

func WrapErrCyclicReference(typeName string, depth int) error {
	return wrapFields(ErrCyclicReference,
		value("type", typeName),
		value("depth", depth),
	)
}

func WrapErrDepthExceeded(depth, limit int) error {
	return wrapFields(ErrDepthExceeded,
		bound("depth", depth, 0, limit),
	)
}

func WrapErrSizeOutOfRange(size int64, limit int64, msg ...string) error {
	err := wrapFields(ErrSizeOutOfRange,
		bound("size", size, 0, limit),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// IO 相关
func WrapErrIoFailed(key string, err error) error {
	if err == nil {
		return nil
	}
	return wrapFieldsWithDesc(ErrIoFailed, err.Error(), value("key", key))
}

func WrapErrIoUnexpectEOF(key string, err error) error {
	if err == nil {
		return nil
	}
	return wrapFieldsWithDesc(ErrIoUnexpectEOF, err.Error(), value("key", key))
}

// 参数相关
func WrapErrParameterInvalid[T any](expected, actual T, msg ...string) error {
	err := wrapFields(ErrParameterInvalid,
		value("expected", expected),
		value("actual", actual),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func WrapErrParameterInvalidMsg(fmt string, args ...any) error {
	return errors.Wrapf(ErrParameterInvalid, fmt, args...)
}

func WrapErrParameterMissing[T any](param T, msg ...string) error {
	err := wrapFields(ErrParameterMissing,
		value("missing_param", param),
	)
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

// 帧相关
func WrapErrFrameTooLarge(size, limit uint32) error {
	return wrapFields(ErrFrameTooLarge,
		bound("size", size, 0, limit),
	)
}

func WrapErrOperationNotSupported(op string, msg ...string) error {
	err := wrapFields(ErrOperationNotSupported, value("op", op))
	if len(msg) > 0 {
		err = errors.Wrap(err, strings.Join(msg, "->"))
	}
	return err
}

func wrapFields(err binnError, fields ...errorField) error {
	for i := range fields {
		err.msg += fmt.Sprintf("[%s]", fields[i].String())
	}
	err.detail = err.msg
	return err
}

func wrapFieldsWithDesc(err binnError, desc string, fields ...errorField) error {
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

type boundField struct {
	name  string
	value any
	lower any
	upper any
}

func bound(name string, value, lower, upper any) boundField {
	return boundField{
		name,
		value,
		lower,
		upper,
	}
}

func (f boundField) String() string {
	return fmt.Sprintf("%v out of range %v <= %s <= %v", f.value, f.lower, f.name, f.upper)
}
