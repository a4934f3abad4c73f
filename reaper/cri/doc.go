/*
Package cri provides a reaper for container engines serving the Kubernetes
CRI API, such as containerd and cri-o.
*/
package cri
