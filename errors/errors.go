// Copyright 2024 The Tektite Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package errors

import (
	"fmt"
)

type ErrorCode int

const InvalidConfiguration ErrorCode = 3000

const (
	UpstreamError ErrorCode = iota + 4000
	Interrupted
)

const InternalError ErrorCode = 5000

func NewInternalError(errReference string) JoinError {
	return NewJoinErrorf(InternalError, "internal error - reference: %s please consult logs for details", errReference)
}

func NewInvalidConfigurationError(msg string) JoinError {
	return NewJoinErrorf(InvalidConfiguration, "invalid configuration: %s", msg)
}

func NewInvalidConfigurationErrorf(msgFormat string, args ...interface{}) JoinError {
	return NewInvalidConfigurationError(fmt.Sprintf(msgFormat, args...))
}

// NewUpstreamError wraps a failure raised by the row source of the named block. The cause is kept so callers can
// still match on it with Is/As.
func NewUpstreamError(blockName string, cause error) error {
	return &wrappedJoinError{
		JoinError: NewJoinErrorf(UpstreamError, "failed to read from block '%s': %v", blockName, cause),
		cause:     cause,
	}
}

func NewInterruptedError(blockName string, cause error) error {
	return &wrappedJoinError{
		JoinError: NewJoinErrorf(Interrupted, "interrupted while reading from block '%s'", blockName),
		cause:     cause,
	}
}

func NewJoinErrorf(errorCode ErrorCode, msgFormat string, args ...interface{}) JoinError {
	msg := fmt.Sprintf(msgFormat, args...)
	return JoinError{Code: errorCode, Msg: msg}
}

func IsJoinErrorWithCode(err error, code ErrorCode) bool {
	var werr *wrappedJoinError
	if As(err, &werr) {
		return werr.Code == code
	}
	var jerr JoinError
	if As(err, &jerr) {
		return jerr.Code == code
	}
	return false
}

type JoinError struct {
	Code ErrorCode
	Msg  string
}

func (u JoinError) Error() string {
	return u.Msg
}

type wrappedJoinError struct {
	JoinError
	cause error
}

func (w *wrappedJoinError) Unwrap() error {
	return w.cause
}
