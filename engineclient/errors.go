// Copyright 2024 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engineclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/thediveo/whalereaper"
)

// UnsupportedKindError is returned by engine adaptors when asked to work on a
// kind of resource they don't support, such as networks in case of
// containerd.
type UnsupportedKindError struct {
	Kind   whalereaper.Kind
	Engine string
}

func (e *UnsupportedKindError) Error() string {
	return fmt.Sprintf("%s engine does not support %s resources", e.Engine, e.Kind)
}

// Is allows UnsupportedKindError to also be checked using
// cerrdefs.IsNotImplemented.
func (e *UnsupportedKindError) Is(target error) bool {
	return target == cerrdefs.ErrNotImplemented
}

// NewUnsupportedKindError returns a new UnsupportedKindError for the
// specified kind of resource and engine type.
func NewUnsupportedKindError(kind whalereaper.Kind, engine string) error {
	return &UnsupportedKindError{Kind: kind, Engine: engine}
}

// IsUnsupportedKind returns true if the specified error indicates that an
// engine doesn't support a particular kind of resource.
func IsUnsupportedKind(err error) bool {
	var uke *UnsupportedKindError
	return errors.As(err, &uke)
}

// IsNotFound returns true if the error indicates that a resource doesn't
// exist (anymore). For reapers, this is a benign condition.
func IsNotFound(err error) bool {
	return err != nil && cerrdefs.IsNotFound(err)
}

// alreadyRemovingPhrases are the (lower case) messages of engines telling us
// that someone else is already removing a resource.
var alreadyRemovingPhrases = []string{
	"is already in progress",
	"already being removed",
	"is being removed",
	"marked for removal",
}

// IsAlreadyRemoving returns true if the error indicates that the resource is
// already being removed or has just been removed. Engines signal this as a
// conflict, such as Docker's "removal of container ... is already in
// progress".
func IsAlreadyRemoving(err error) bool {
	if err == nil {
		return false
	}
	if !cerrdefs.IsConflict(err) && !cerrdefs.IsAlreadyExists(err) && !cerrdefs.IsInternal(err) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range alreadyRemovingPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// IsTransient returns true if the error indicates a failed engine operation
// that might succeed when tried again, such as an unavailable or overloaded
// engine, or a resource still being in use by another resource that is
// currently going away.
func IsTransient(err error) bool {
	switch {
	case err == nil:
		return false
	case IsUnsupportedKind(err):
		return false
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, context.Canceled):
		return false
	}
	return cerrdefs.IsUnavailable(err) ||
		cerrdefs.IsInternal(err) ||
		cerrdefs.IsConflict(err) ||
		cerrdefs.IsResourceExhausted(err) ||
		cerrdefs.IsAborted(err) ||
		cerrdefs.IsDeadlineExceeded(err) ||
		cerrdefs.IsUnknown(err)
}
