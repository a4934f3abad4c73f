/*
Package moby provides a reaper for Docker/Moby engines.

Please note that the moby reaper cleans up containers, networks, and volumes,
in this order.
*/
package moby
