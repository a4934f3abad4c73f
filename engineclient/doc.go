/*
Package engineclient defines the EngineClient interface between concrete
container engine adaptor implementations and the engine-neutral reaper core,
as well as the engine-neutral classification of engine errors.

Sub-packages implement specific container engines adaptors. Adaptors must
normalize their engine-specific errors into the error classes of
[github.com/containerd/errdefs], so that the reaper core can tell benign
"not found" and "already being removed" situations from transient and fatal
engine failures.
*/
package engineclient
