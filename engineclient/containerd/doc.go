/*
Package containerd implements the containerd EngineClient.

# Notes

containerd only knows of containers and their tasks, so networks and volumes
are not supported. Containers are identified by their display IDs in the form
of "namespace/id", where the namespace is left out for the "default"
namespace.

This engine client ignores the "moby" namespace, as Docker containers must be
reaped through the Docker engine instead.
*/
package containerd
