/*
Package containerd provides a reaper for containerd engines. It reaps
containers in all containerd namespaces except Docker's "moby" namespace.
*/
package containerd
