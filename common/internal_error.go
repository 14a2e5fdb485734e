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

package common

import (
	"github.com/google/uuid"
	"github.com/spirit-labs/blockjoin/errors"
	log "github.com/spirit-labs/blockjoin/logger"
)

// LogInternalError logs err with a freshly generated reference and returns an error that carries only the reference.
// Errors which already carry a join error code are returned unchanged, they are meant for the user.
func LogInternalError(err error) error {
	var jerr errors.JoinError
	if errors.As(err, &jerr) {
		return err
	}
	for _, code := range []errors.ErrorCode{errors.UpstreamError, errors.Interrupted} {
		if errors.IsJoinErrorWithCode(err, code) {
			return err
		}
	}
	id, err2 := uuid.NewRandom()
	var errRef string
	if err2 != nil {
		log.Errorf("failed to generate uuid %v", err2)
	} else {
		errRef = id.String()
	}
	log.Errorf("internal error (reference %s) occurred %+v", errRef, err)
	return errors.NewInternalError(errRef)
}
