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

package reaper_test

import (
	"context"
	"errors"
	"fmt"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/thediveo/whalereaper"
	"github.com/thediveo/whalereaper/engineclient/moby"
	"github.com/thediveo/whalereaper/reaper"
	"github.com/thediveo/whalereaper/test/mockingmoby"
	"go.uber.org/multierr"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/whalereaper/test/matcher"
)

var _ = Describe("tearing down", func() {

	var mm *mockingmoby.MockingMoby
	var r reaper.Reaper

	BeforeEach(func() {
		mm = mockingmoby.NewMockingMoby()
		r = reaper.New(moby.NewMobyReaper(mm), reaper.WithBackOff(quickRetry))
		DeferCleanup(func() {
			r.Close()
		})
	})

	// failOn returns a context with a hook failing the specified API calls
	// for the specified resource with the specified error.
	failOn := func(ctx context.Context, key mockingmoby.HookKey, id string, err error) context.Context {
		return mockingmoby.WithHook(ctx, key, func(_ mockingmoby.HookKey, nameorid string) error {
			if nameorid == id {
				return err
			}
			return nil
		})
	}

	Context("individual resources", func() {

		It("doesn't stop or remove resources not found", func(ctx context.Context) {
			res := r.StopAndRemove(ctx, whalereaper.Container, "missing_moby")
			Expect(res).To(And(
				HaveResource(whalereaper.Container, "missing_moby"),
				HaveOutcome(reaper.Absent)))
			Expect(res.Failure()).NotTo(HaveOccurred())
			Expect(mm.Calls(mockingmoby.ContainerInspectPre, "missing_moby")).To(Equal(1))
			Expect(mm.Calls(mockingmoby.ContainerKillPre, "")).To(BeZero())
			Expect(mm.Calls(mockingmoby.ContainerRemovePre, "")).To(BeZero())
		})

		It("kills and removes a running container, idempotently", func(ctx context.Context) {
			mm.AddContainer(furiousFuruncle)
			r.RegisterContainer(furiousFuruncle.ID, "busybox")

			res := r.StopAndRemove(ctx, whalereaper.Container, furiousFuruncle.ID)
			Expect(res).To(HaveOutcome(reaper.Removed))
			Expect(res.Label).To(Equal("busybox"))
			Expect(res.Duration).To(BeNumerically(">", 0))
			Expect(mm.Calls(mockingmoby.ContainerInspectPre, furiousFuruncle.ID)).To(Equal(2))
			Expect(mm.Calls(mockingmoby.ContainerKillPre, furiousFuruncle.ID)).To(Equal(1))
			Expect(mm.Calls(mockingmoby.ContainerRemovePre, furiousFuruncle.ID)).To(Equal(1))
			Expect(mm.HasContainer(furiousFuruncle.ID)).To(BeFalse())
			Expect(r.Len()).To(BeZero())

			Expect(r.StopAndRemove(ctx, whalereaper.Container, furiousFuruncle.ID)).To(
				HaveOutcome(reaper.Absent))
		})

		It("removes a stopped container without killing it", func(ctx context.Context) {
			mm.AddContainer(mockingMoby)
			Expect(r.StopAndRemove(ctx, whalereaper.Container, mockingMoby.Name)).To(
				HaveOutcome(reaper.Removed))
			Expect(mm.Calls(mockingmoby.ContainerInspectPre, "")).To(Equal(1))
			Expect(mm.Calls(mockingmoby.ContainerKillPre, "")).To(BeZero())
		})

		It("treats removals already in progress as success", func(ctx context.Context) {
			mm.AddContainer(mockingmoby.MockedContainer{
				ID:     "42",
				Name:   "removing_rita",
				Status: mockingmoby.MockedRemoving,
			})
			res := r.StopAndRemove(ctx, whalereaper.Container, "42")
			Expect(res).To(HaveOutcome(reaper.Removed))
			Expect(res.Failure()).NotTo(HaveOccurred())
			Expect(mm.Calls(mockingmoby.ContainerRemovePre, "42")).To(Equal(1))
		})

		It("treats resources vanishing while being removed as absent", func(ctx context.Context) {
			mm.AddContainer(mockingMoby)
			res := r.StopAndRemove(
				mockingmoby.WithHook(ctx, mockingmoby.ContainerRemovePre,
					func(mockingmoby.HookKey, string) error {
						mm.RemoveContainer(mockingMoby.ID)
						return nil
					}),
				whalereaper.Container, mockingMoby.ID)
			Expect(res).To(HaveOutcome(reaper.Absent))
		})

		It("swallows stop errors, but keeps them", func(ctx context.Context) {
			mm.AddContainer(furiousFuruncle)
			res := r.StopAndRemove(
				failOn(ctx, mockingmoby.ContainerKillPre, furiousFuruncle.ID, errors.New("D'oh!")),
				whalereaper.Container, furiousFuruncle.ID)
			Expect(res).To(And(HaveOutcome(reaper.Removed), HaveStopError()))
			Expect(res.Failure()).NotTo(HaveOccurred())
			Expect(mm.HasContainer(furiousFuruncle.ID)).To(BeFalse())
		})

		It("reports the stop error when removal fails too", func(ctx context.Context) {
			mm.AddContainer(furiousFuruncle)
			ctx = failOn(ctx, mockingmoby.ContainerKillPre, furiousFuruncle.ID, errors.New("D'oh!"))
			ctx = failOn(ctx, mockingmoby.ContainerRemovePre, furiousFuruncle.ID, errors.New("D'oh again!"))
			res := r.StopAndRemove(ctx, whalereaper.Container, furiousFuruncle.ID)
			Expect(res).To(And(HaveFailedOp(reaper.OpRemove), HaveStopError()))
			Expect(res.Err.StopErr).To(MatchError("D'oh!"))
			Expect(res.Err.Fatal).To(BeTrue())
			Expect(res.Failure()).To(MatchError(ContainSubstring("after failing to stop")))
			Expect(r.Len()).To(BeZero())
		})

		It("doesn't retry fatal errors", func(ctx context.Context) {
			mm.AddContainer(mockingMoby)
			doh := errors.New("D'oh!")
			res := r.StopAndRemove(
				failOn(ctx, mockingmoby.ContainerRemovePre, mockingMoby.ID, doh),
				whalereaper.Container, mockingMoby.ID)
			Expect(res).To(HaveFailedOp(reaper.OpRemove))
			Expect(res.Err.Fatal).To(BeTrue())
			Expect(res.Failure()).To(MatchError(doh))
			Expect(mm.Calls(mockingmoby.ContainerRemovePre, mockingMoby.ID)).To(Equal(1))
		})

		It("retries transient errors", func(ctx context.Context) {
			mm.AddContainer(mockingMoby)
			attempts := 0
			res := r.StopAndRemove(
				mockingmoby.WithHook(ctx, mockingmoby.ContainerRemovePre,
					func(mockingmoby.HookKey, string) error {
						attempts++
						if attempts == 1 {
							return fmt.Errorf("engine hiccup: %w", cerrdefs.ErrUnavailable)
						}
						return nil
					}),
				whalereaper.Container, mockingMoby.ID)
			Expect(res).To(HaveOutcome(reaper.Removed))
			Expect(mm.Calls(mockingmoby.ContainerRemovePre, mockingMoby.ID)).To(Equal(2))
		})

		It("reports transient errors after retrying", func(ctx context.Context) {
			mm.AddContainer(mockingMoby)
			res := r.StopAndRemove(
				failOn(ctx, mockingmoby.ContainerRemovePre, mockingMoby.ID,
					fmt.Errorf("engine hiccup: %w", cerrdefs.ErrUnavailable)),
				whalereaper.Container, mockingMoby.ID)
			Expect(res).To(HaveFailedOp(reaper.OpRemove))
			Expect(res.Err.Fatal).To(BeFalse())
			Expect(res.Failure()).To(MatchError(cerrdefs.ErrUnavailable))
			Expect(mm.Calls(mockingmoby.ContainerRemovePre, mockingMoby.ID)).To(Equal(2))
		})

		It("fails on unsupported kinds", func(ctx context.Context) {
			res := r.StopAndRemove(ctx, whalereaper.Kind(42), "foo")
			Expect(res).To(HaveFailedOp(reaper.OpInspect))
			Expect(res.Err.Fatal).To(BeTrue())
		})

		It("skips when already cancelled", func(ctx context.Context) {
			mm.AddContainer(furiousFuruncle)
			r.RegisterContainer(furiousFuruncle.ID, "")
			ctx, cancel := context.WithCancel(ctx)
			cancel()
			Expect(r.StopAndRemove(ctx, whalereaper.Container, furiousFuruncle.ID)).To(
				HaveOutcome(reaper.Skipped))
			Expect(mm.HasContainer(furiousFuruncle.ID)).To(BeTrue())
			Expect(r.Len()).To(Equal(1))
		})

	})

	Context("cleanup passes", func() {

		It("stops and removes running containers, but skips stopping absent ones", func(ctx context.Context) {
			c1 := furiousFuruncle
			c1.ID = "c1"
			mm.AddContainer(c1)
			r.RegisterContainer("c1", "")
			r.RegisterContainer("c2", "")

			report := r.PerformCleanup(ctx)
			Expect(report.Err()).NotTo(HaveOccurred())
			Expect(report).To(HaveResult(HaveID("c1"), HaveOutcome(reaper.Removed)))
			Expect(report).To(HaveResult(HaveID("c2"), HaveOutcome(reaper.Absent)))
			Expect(report.Results).To(HaveLen(2))

			Expect(mm.Calls(mockingmoby.ContainerKillPre, "c1")).To(Equal(1))
			Expect(mm.Calls(mockingmoby.ContainerRemovePre, "c1")).To(Equal(1))
			Expect(mm.Calls(mockingmoby.ContainerInspectPre, "c2")).To(Equal(1))
			Expect(mm.Calls(mockingmoby.ContainerKillPre, "c2")).To(BeZero())
			Expect(mm.Calls(mockingmoby.ContainerRemovePre, "c2")).To(BeZero())

			Expect(r.Len()).To(BeZero())
			Expect(r.PerformCleanup(ctx).Results).To(BeEmpty())
		})

		It("continues after failures", func(ctx context.Context) {
			for _, c := range []mockingmoby.MockedContainer{furiousFuruncle, mockingMoby, pausingPm} {
				mm.AddContainer(c)
				r.RegisterContainer(c.ID, "")
			}
			report := r.PerformCleanup(
				failOn(ctx, mockingmoby.ContainerRemovePre, mockingMoby.ID, errors.New("D'oh!")))
			Expect(report.Count(reaper.Removed)).To(Equal(2))
			Expect(report.Count(reaper.Failed)).To(Equal(1))
			Expect(report.Failed()).To(ConsistOf(HaveID(mockingMoby.ID)))
			Expect(report).To(HaveResult(HaveID(pausingPm.ID), HaveOutcome(reaper.Removed)))
			Expect(report.Err()).To(HaveOccurred())
			Expect(multierr.Errors(report.Err())).To(HaveLen(1))
			Expect(report.String()).To(Equal("0 absent, 2 removed, 1 failed, 0 skipped"))

			res, ok := report.Result(whalereaper.Container, mockingMoby.ID)
			Expect(ok).To(BeTrue())
			Expect(res.Failure()).To(MatchError(MatchRegexp(`cannot remove container '1234567890': D'oh!`)))
			Expect(r.Len()).To(BeZero())
		})

		It("reaps containers before networks and volumes", func(ctx context.Context) {
			mm.AddContainer(furiousFuruncle)
			mm.AddNetwork(mockingmoby.MockedNetwork{
				ID:         "n1",
				Name:       "noisy_net",
				Containers: []string{furiousFuruncle.ID},
			})
			mm.AddVolume(mockingmoby.MockedVolume{
				Name:   "vast_volume",
				UsedBy: []string{furiousFuruncle.ID},
			})
			r.RegisterVolume("vast_volume")
			r.RegisterNetworkByName("noisy_net")
			r.RegisterContainer(furiousFuruncle.Name, "")

			report := r.PerformCleanup(ctx)
			Expect(report.Err()).NotTo(HaveOccurred())
			Expect(report.Results).To(HaveExactElements(
				HaveResource(whalereaper.Container, furiousFuruncle.Name),
				HaveResource(whalereaper.Network, "noisy_net"),
				HaveResource(whalereaper.Volume, "vast_volume"),
			))
			Expect(report.Count(reaper.Removed)).To(Equal(3))
			Expect(mm.HasNetwork("n1")).To(BeFalse())
			Expect(mm.HasVolume("vast_volume")).To(BeFalse())
		})

		It("removes by filter", func(ctx context.Context) {
			labels := r.SessionLabels()
			sessioned := mockingMoby
			sessioned.Labels = labels
			mm.AddContainer(sessioned)
			mm.AddContainer(furiousFuruncle)
			mm.AddNetwork(mockingmoby.MockedNetwork{ID: "n1", Name: "noisy_net", Labels: labels})
			mm.AddVolume(mockingmoby.MockedVolume{Name: "vast_volume", Labels: labels})
			mm.AddVolume(mockingmoby.MockedVolume{Name: "other_volume"})

			report := r.RemoveByFilter(ctx, whalereaper.NewFilter(labels))
			Expect(report.Err()).NotTo(HaveOccurred())
			Expect(report.Results).To(ConsistOf(
				HaveResource(whalereaper.Container, sessioned.ID),
				HaveResource(whalereaper.Network, "n1"),
				HaveResource(whalereaper.Volume, "vast_volume"),
			))
			Expect(mm.HasContainer(furiousFuruncle.ID)).To(BeTrue())
			Expect(mm.HasVolume("other_volume")).To(BeTrue())

			Expect(r.RemoveByFilter(ctx, whalereaper.Filter{}).Results).To(BeEmpty())
		})

		It("sweeps its session", func(ctx context.Context) {
			r := reaper.New(moby.NewMobyReaper(mm), reaper.WithSessionFilter())
			defer r.Close()
			sessioned := furiousFuruncle
			sessioned.Labels = r.SessionLabels()
			mm.AddContainer(sessioned)
			mm.AddContainer(mockingMoby)
			r.RegisterContainer(mockingMoby.ID, "")
			r.RegisterContainer("missing_moby", "")

			report := r.PerformCleanup(ctx)
			Expect(report.Err()).NotTo(HaveOccurred())
			Expect(report.Results).To(ConsistOf(
				And(HaveID(sessioned.ID), HaveOutcome(reaper.Removed)),
				And(HaveID(mockingMoby.ID), HaveOutcome(reaper.Removed)),
				And(HaveID("missing_moby"), HaveOutcome(reaper.Absent)),
			))
			Expect(r.Filters()).To(HaveLen(1))
		})

		It("reports listing errors", func(ctx context.Context) {
			r.RegisterFilter(whalereaper.ParseFilter("foo=bar"))
			report := r.PerformCleanup(
				mockingmoby.WithHook(ctx, mockingmoby.NetworkListPre,
					func(mockingmoby.HookKey, string) error { return errors.New("D'oh!") }))
			Expect(report.Results).To(BeEmpty())
			Expect(report.ListErrors).To(ConsistOf(And(
				HaveField("Kind", whalereaper.Network),
				HaveField("Op", reaper.OpList))))
			Expect(report.Err()).To(MatchError(ContainSubstring("cannot list network 'foo=bar'")))
			Expect(report.String()).To(HaveSuffix(", 1 listing errors"))
		})

		It("skips resources after cancellation, but finishes those started", func(ctx context.Context) {
			r := reaper.New(moby.NewMobyReaper(mm), reaper.WithParallelism(1))
			defer r.Close()
			mm.AddContainer(furiousFuruncle)
			mm.AddContainer(mockingMoby)
			r.RegisterContainer(furiousFuruncle.ID, "")
			r.RegisterContainer(mockingMoby.ID, "")
			r.RegisterVolume("vast_volume")

			ctx, cancel := context.WithCancel(ctx)
			defer cancel()
			// registered resources are reaped in ID order, so the furuncle
			// comes second.
			report := r.PerformCleanup(
				mockingmoby.WithHook(ctx, mockingmoby.ContainerInspectPre,
					func(mockingmoby.HookKey, string) error {
						cancel()
						return nil
					}))
			Expect(report).To(HaveResult(HaveID(mockingMoby.ID), HaveOutcome(reaper.Removed)))
			Expect(report).To(HaveResult(HaveID(furiousFuruncle.ID), HaveOutcome(reaper.Skipped)))
			Expect(report).To(HaveResult(HaveID("vast_volume"), HaveOutcome(reaper.Skipped)))
			Expect(report.Err()).NotTo(HaveOccurred())
			Expect(mm.HasContainer(furiousFuruncle.ID)).To(BeTrue())
			Expect(r.Resources()).To(ConsistOf(
				HaveID(furiousFuruncle.ID),
				HaveID("vast_volume")))

			Expect(r.PerformCleanup(context.Background()).Err()).NotTo(HaveOccurred())
			Expect(r.Len()).To(BeZero())
		})

		It("reports filters left unswept by cancelled passes", func(ctx context.Context) {
			labelled := furiousFuruncle
			labelled.Labels = map[string]string{"foo": "bar"}
			mm.AddContainer(labelled)
			r.RegisterFilter(whalereaper.ParseFilter("foo=bar"))

			ctx, cancel := context.WithCancel(ctx)
			cancel()
			report := r.PerformCleanup(ctx)
			Expect(report.Results).To(BeEmpty())
			Expect(report.ListErrors).To(HaveLen(len(whalereaper.Kinds)))
			Expect(report.ListErrors).To(HaveEach(And(
				HaveField("Op", reaper.OpList),
				HaveField("ID", "foo=bar"),
				MatchError(context.Canceled))))
			Expect(report.Err()).To(MatchError(context.Canceled))
			Expect(report.Complete()).To(BeFalse())
			Expect(mm.HasContainer(labelled.ID)).To(BeTrue())

			report = r.PerformCleanup(context.Background())
			Expect(report.Complete()).To(BeTrue())
			Expect(report).To(HaveResult(HaveID(labelled.ID), HaveOutcome(reaper.Removed)))
			Expect(mm.HasContainer(labelled.ID)).To(BeFalse())
		})

	})

})
