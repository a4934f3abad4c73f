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
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/thediveo/whalereaper"
	"github.com/thediveo/whalereaper/engineclient/moby"
	"github.com/thediveo/whalereaper/reaper"
	"github.com/thediveo/whalereaper/test/mockingmoby"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/fdooze"
)

var (
	furiousFuruncle = mockingmoby.MockedContainer{
		ID:     "6666666666",
		Name:   "furious_furuncle",
		Status: mockingmoby.MockedRunning,
		PID:    666,
	}

	mockingMoby = mockingmoby.MockedContainer{
		ID:     "1234567890",
		Name:   "mocking_moby",
		Status: mockingmoby.MockedExited,
	}

	pausingPm = mockingmoby.MockedContainer{
		ID:     "10",
		Name:   "pausing_pm",
		Status: mockingmoby.MockedPaused,
		PID:    10,
	}
)

// quickRetry retries a failed engine call exactly once, without any delay.
func quickRetry() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1)
}

var _ = Describe("reaper", func() {

	BeforeEach(func() {
		goodfds := Filedescriptors()
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).ShouldNot(HaveLeaked(goodgos))
			Expect(Filedescriptors()).NotTo(HaveLeakedFds(goodfds))
		})
	})

	var mm *mockingmoby.MockingMoby
	var r reaper.Reaper

	BeforeEach(func() {
		mm = mockingmoby.NewMockingMoby()
		r = reaper.New(moby.NewMobyReaper(mm), reaper.WithBackOff(quickRetry))
		DeferCleanup(func() {
			r.Close()
		})
	})

	It("passes through engine information", func(ctx context.Context) {
		Expect(r.ID(ctx)).To(Equal(mockingmoby.MockedEngineID))
		Expect(r.Type()).To(Equal(moby.Type))
		Expect(r.API()).To(Equal(mm.DaemonHost()))
	})

	It("has session labels", func() {
		Expect(r.SessionID()).NotTo(BeEmpty())
		Expect(r.SessionLabels()).To(HaveKeyWithValue(reaper.SessionLabel, r.SessionID()))
		Expect(r.Filters()).To(BeEmpty())

		other := reaper.New(moby.NewMobyReaper(mm), reaper.WithSessionFilter())
		Expect(other.SessionID()).NotTo(Equal(r.SessionID()))
		Expect(other.Filters()).To(Equal([]whalereaper.Filter{whalereaper.NewFilter(other.SessionLabels())}))
	})

	It("registers and unregisters resources", func() {
		r.RegisterContainer(furiousFuruncle.ID, "busybox:latest")
		r.RegisterContainer(furiousFuruncle.ID, "alpine:latest")
		r.RegisterContainer("", "foo")
		r.RegisterNetwork("n1234")
		r.RegisterNetworkByName("noisy_net")
		r.RegisterVolume("vast_volume")
		Expect(r.Len()).To(Equal(4))
		Expect(r.Resources()).To(ConsistOf(
			And(HaveField("Kind", whalereaper.Container),
				HaveField("ID", furiousFuruncle.ID),
				HaveField("Label", "busybox:latest")),
			HaveField("ID", "n1234"),
			HaveField("ID", "noisy_net"),
			HaveField("ID", "vast_volume"),
		))

		r.UnregisterContainer(furiousFuruncle.ID)
		r.UnregisterContainer(furiousFuruncle.ID)
		r.UnregisterNetwork("noisy_net")
		r.UnregisterVolume("vast_volume")
		r.UnregisterVolume("n1234")
		Expect(r.Resources()).To(ConsistOf(HaveField("ID", "n1234")))
	})

	It("contains exactly the registered resources for random register/unregister sequences", func() {
		rnd := rand.New(rand.NewSource(GinkgoRandomSeed()))
		model := map[string]bool{}
		for i := 0; i < 1000; i++ {
			id := fmt.Sprintf("c%d", rnd.Intn(20))
			if rnd.Intn(3) == 0 {
				r.UnregisterContainer(id)
				delete(model, id)
				continue
			}
			r.RegisterContainer(id, "")
			model[id] = true
		}
		ids := []string{}
		for id := range model {
			ids = append(ids, id)
		}
		Expect(r.Len()).To(Equal(len(model)))
		Expect(r.Resources()).To(HaveLen(len(ids)))
		for _, res := range r.Resources() {
			Expect(ids).To(ContainElement(res.ID))
		}
	})

	It("registers only distinct non-empty filters", func() {
		r.RegisterFilter(whalereaper.ParseFilter("foo=bar"))
		r.RegisterFilter(whalereaper.ParseFilter("foo=bar"))
		r.RegisterFilter(whalereaper.Filter{})
		Expect(r.Filters()).To(Equal([]whalereaper.Filter{whalereaper.ParseFilter("foo=bar")}))
	})

	It("survives concurrent registrations during a cleanup pass", func(ctx context.Context) {
		for i := 0; i < 10; i++ {
			id := fmt.Sprintf("c%d", i)
			mm.AddContainer(mockingmoby.MockedContainer{ID: id, Name: "n" + id, Status: mockingmoby.MockedRunning})
			r.RegisterContainer(id, "")
		}
		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer GinkgoRecover()
			defer wg.Done()
			for i := 10; i < 100; i++ {
				r.RegisterContainer(fmt.Sprintf("c%d", i), "")
			}
		}()
		report := r.PerformCleanup(ctx)
		wg.Wait()
		Expect(report.Err()).NotTo(HaveOccurred())
		Expect(report.Count(reaper.Removed)).To(Equal(10))
		// nothing removed twice, nothing left behind that existed.
		for i := 0; i < 10; i++ {
			Expect(mm.HasContainer(fmt.Sprintf("c%d", i))).To(BeFalse())
		}
		Expect(r.Len()).To(BeNumerically("<=", 90))
	})

	It("returns an empty report for an empty registry", func(ctx context.Context) {
		report := r.PerformCleanup(ctx)
		Expect(report).NotTo(BeNil())
		Expect(report.Results).To(BeEmpty())
		Expect(report.Err()).NotTo(HaveOccurred())
		Expect(mm.Calls(mockingmoby.ContainerInspectPre, "")).To(BeZero())
		Expect(mm.Calls(mockingmoby.ContainerListPre, "")).To(BeZero())
	})

	It("times out engine calls", func(ctx context.Context) {
		r := reaper.New(moby.NewMobyReaper(mm),
			reaper.WithCallTimeout(50*time.Millisecond),
			reaper.WithBackOff(quickRetry))
		defer r.Close()
		mm.AddContainer(furiousFuruncle)
		res := r.StopAndRemove(mockingmoby.WithHook(ctx, mockingmoby.ContainerInspectPre,
			func(mockingmoby.HookKey, string) error {
				time.Sleep(100 * time.Millisecond)
				return nil
			}), whalereaper.Container, furiousFuruncle.ID)
		Expect(mm.Calls(mockingmoby.ContainerInspectPre, furiousFuruncle.ID)).To(Equal(2))
		// removing forcefully nevertheless.
		Expect(res.Outcome).To(Equal(reaper.Removed))
		Expect(mm.HasContainer(furiousFuruncle.ID)).To(BeFalse())
	})

})
