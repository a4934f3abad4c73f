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

package whalereaper

import (
	crand "crypto/rand"
	"encoding/hex"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// newTestResource returns a new fake resource of the specified kind with a
// random ID string.
func newTestResource(kind Kind, label string) Resource {
	o := make([]byte, 32) // length of fake SHA256 in "octets" :p
	_, err := crand.Read(o)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())
	return Resource{
		ID:           hex.EncodeToString(o),
		Kind:         kind,
		Label:        label,
		RegisteredAt: time.Now(),
	}
}

var _ = Describe("resources", func() {

	It("names kinds", func() {
		Expect(Container.String()).To(Equal("container"))
		Expect(Network.String()).To(Equal("network"))
		Expect(Volume.String()).To(Equal("volume"))
		Expect(Kind(42).String()).To(Equal("kind(42)"))
		Expect(Kinds).To(HaveExactElements(Container, Network, Volume))
	})

	It("stringifies", func() {
		r := newTestResource(Container, "busybox:latest")
		Expect(r.String()).To(Equal("container '" + r.ID + "' (busybox:latest)"))

		r = newTestResource(Volume, "")
		Expect(r.String()).To(Equal("volume '" + r.ID + "'"))
	})

})
