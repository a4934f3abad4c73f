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
	"context"
	"sync"

	"github.com/thediveo/whalereaper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	runtimev1 "k8s.io/cri-api/pkg/apis/runtime/v1"
)

// fakeRuntime is a CRI runtime service with just enough functionality for
// reaping containers; calling any other service method panics.
type fakeRuntime struct {
	runtimev1.RuntimeServiceClient

	mu           sync.Mutex
	containers   map[string]*runtimev1.Container
	stopTimeouts []int64
	selectors    []map[string]string
	failWith     error // if set, all calls fail with this error.
}

var _ RuntimeClient = (*fakeClient)(nil)

// fakeClient wraps a fakeRuntime into a RuntimeClient.
type fakeClient struct {
	rt     *fakeRuntime
	closed bool
}

func (c *fakeClient) RuntimeService() runtimev1.RuntimeServiceClient { return c.rt }
func (c *fakeClient) Address() string { return "fake:///cri" }
func (c *fakeClient) Close() error {
	c.closed = true
	return nil
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{containers: map[string]*runtimev1.Container{}}
}

func (f *fakeRuntime) add(id string, state runtimev1.ContainerState, labels map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.containers[id] = &runtimev1.Container{
		Id:       id,
		Metadata: &runtimev1.ContainerMetadata{Name: id},
		State:    state,
		Labels:   labels,
	}
}

func (f *fakeRuntime) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.containers[id]
	return ok
}

func notFound(id string) error {
	return status.Errorf(codes.NotFound, "container %q not found", id)
}

func (f *fakeRuntime) ContainerStatus(ctx context.Context, in *runtimev1.ContainerStatusRequest, opts ...grpc.CallOption) (*runtimev1.ContainerStatusResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	cntr, ok := f.containers[in.ContainerId]
	if !ok {
		return nil, notFound(in.ContainerId)
	}
	return &runtimev1.ContainerStatusResponse{
		Status: &runtimev1.ContainerStatus{
			Id:     cntr.Id,
			State:  cntr.State,
			Labels: cntr.Labels,
		},
	}, nil
}

func (f *fakeRuntime) StopContainer(ctx context.Context, in *runtimev1.StopContainerRequest, opts ...grpc.CallOption) (*runtimev1.StopContainerResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.stopTimeouts = append(f.stopTimeouts, in.Timeout)
	cntr, ok := f.containers[in.ContainerId]
	if !ok {
		return nil, notFound(in.ContainerId)
	}
	cntr.State = runtimev1.ContainerState_CONTAINER_EXITED
	return &runtimev1.StopContainerResponse{}, nil
}

func (f *fakeRuntime) RemoveContainer(ctx context.Context, in *runtimev1.RemoveContainerRequest, opts ...grpc.CallOption) (*runtimev1.RemoveContainerResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	delete(f.containers, in.ContainerId)
	return &runtimev1.RemoveContainerResponse{}, nil
}

func (f *fakeRuntime) ListContainers(ctx context.Context, in *runtimev1.ListContainersRequest, opts ...grpc.CallOption) (*runtimev1.ListContainersResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	var selector map[string]string
	if in.Filter != nil {
		selector = in.Filter.LabelSelector
	}
	f.selectors = append(f.selectors, selector)
	resp := &runtimev1.ListContainersResponse{}
	for _, cntr := range f.containers {
		if len(selector) != 0 && !whalereaper.NewFilter(selector).Matches(cntr.Labels) {
			continue
		}
		resp.Containers = append(resp.Containers, cntr)
	}
	return resp, nil
}
