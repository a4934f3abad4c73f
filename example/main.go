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

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"
	"github.com/thediveo/whalereaper/reaper"
	"github.com/thediveo/whalereaper/reaper/moby"
)

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()
	r, err := moby.New("unix:///var/run/docker.sock", nil,
		reaper.WithLogger(log),
		reaper.WithSessionFilter())
	if err != nil {
		panic(err)
	}
	defer r.Close()
	ctx := context.Background()
	fmt.Printf("reaping on engine ID: %s\n", r.ID(ctx))

	// make sure to clean up even when interrupted.
	stop := reaper.CleanupOnSignal(ctx, r, func(report *reaper.Report) {
		fmt.Printf("interrupted: %s\n", report)
		os.Exit(1)
	})
	defer stop()

	// create a session-labelled network and an explicitly registered
	// container; the network gets swept by the session filter.
	docker, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		panic(err)
	}
	defer docker.Close()
	name := "whalereaper-example-" + r.SessionID()[:8]
	if _, err := docker.NetworkCreate(ctx, name, network.CreateOptions{
		Labels: r.SessionLabels(),
	}); err != nil {
		panic(err)
	}
	cntr, err := docker.ContainerCreate(ctx, &container.Config{
		Image: "busybox:latest",
		Cmd:   []string{"/bin/sleep", "30s"},
	}, &container.HostConfig{
		NetworkMode: container.NetworkMode(name),
	}, nil, nil, name)
	if err != nil {
		fmt.Printf("cannot create container: %s\n", err)
	} else {
		r.RegisterContainer(cntr.ID, "busybox:latest")
		_ = docker.ContainerStart(ctx, cntr.ID, container.StartOptions{})
	}

	time.Sleep(2 * time.Second)

	report := r.PerformCleanup(ctx)
	for _, res := range report.Results {
		fmt.Println(res)
	}
	fmt.Println(report)
}
