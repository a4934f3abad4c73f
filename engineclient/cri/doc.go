/*
Package cri implements the CRI API EngineClient.

# CRI API Model

The [CRI API] obviously has been designed to primarily serve the needs of
(crying) kubelets. The so-called “runtime“ service API mostly revolves around
these two first-class runtime elements:
  - pod sandboxes
  - containers

There are no networks and volumes at the CRI level, so the CRI engine client
only reaps containers. Pod sandboxes are left to their pod-aware owners.

CRI's label selectors only match exact label values; label pairs only asking
for the presence of a label get matched by the engine client itself.

CRI doesn't identify container engines, so the host name of the engine's UTS
namespace serves as the engine ID instead.

[CRI API]: https://github.com/kubernetes/cri-api/blob/c20fa40/pkg/apis/runtime/v1/api.proto
*/
package cri
