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

package cri

import (
	"os"
	"regexp"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// invalidHostnameChars matches anything not allowed in host names, such as
// trailing newlines in /etc/hostname files.
var invalidHostnameChars = regexp.MustCompile(`[^a-zA-Z0-9_\-.]+`)

// engineHostname returns the host name of the container engine with the
// specified PID, or our own host name if the PID is zero. It first tries the
// engine's UTS namespace and then falls back to the engine's /etc/hostname.
// It returns an empty host name if neither works out.
func engineHostname(pid int) string {
	if pid == 0 {
		if name, err := os.Hostname(); err == nil && name != "" {
			return name
		}
		pid = os.Getpid()
	} else if name, err := utsHostname(pid); err == nil && name != "" {
		return name
	}
	return etcHostname(pid)
}

// etcHostname returns the host name as configured in the /etc/hostname file
// inside the mount namespace of the process with the specified PID.
func etcHostname(pid int) string {
	octets, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/root/etc/hostname")
	if err != nil {
		return ""
	}
	return invalidHostnameChars.ReplaceAllString(strings.TrimSpace(string(octets)), "")
}

// utsHostname returns the host name of the UTS namespace the process with the
// specified PID is attached to. The namespace switch happens on a separate,
// locked OS thread, so that no other goroutine ever sees the switched UTS
// namespace.
func utsHostname(pid int) (string, error) {
	ownfd, err := openNamespace("self")
	if err != nil {
		return "", err
	}
	defer unix.Close(ownfd)
	utsfd, err := openNamespace(strconv.Itoa(pid))
	if err != nil {
		return "", err
	}
	defer unix.Close(utsfd)

	type result struct {
		name string
		err  error
	}
	resultch := make(chan result, 1)
	go func() {
		runtime.LockOSThread()
		if err := unix.Setns(utsfd, unix.CLONE_NEWUTS); err != nil {
			runtime.UnlockOSThread()
			resultch <- result{err: errors.Wrap(err, "cannot switch into UTS namespace")}
			return
		}
		name, err := os.Hostname()
		if unix.Setns(ownfd, unix.CLONE_NEWUTS) == nil {
			// otherwise leave the thread locked so the Go runtime throws it
			// away once this goroutine ends.
			runtime.UnlockOSThread()
		}
		resultch <- result{name: name, err: err}
	}()
	res := <-resultch
	return res.name, res.err
}

// openNamespace opens the UTS namespace reference of the specified process,
// where "self" references our own process.
func openNamespace(proc string) (int, error) {
	fd, err := unix.Open("/proc/"+proc+"/ns/uts", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return -1, errors.Wrapf(err, "cannot open UTS namespace of process %s", proc)
	}
	return fd, nil
}
