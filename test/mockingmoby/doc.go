/*
Package mockingmoby is a very minimalist Docker mock client designed for simple
unit tests of the whalereaper packages. Only inspecting, listing, stopping,
killing, and removing containers is supported, as well as inspecting, listing,
and removing networks and volumes. Moreover, only very few resource
properties are mocked, just to the extend needed in the whalereaper packages.

But in contrast to using a real Docker client in unit tests mockingmoby offers
service API hooks which get called at the beginning and end of service API
calls. This can be used to inject engine faults for particular resources, or
to synchronize certain "asynchronous" events with exact logical timing without
the need to instrument production code under test with hooks. The service API
hooks are passed in via (service) context values.

The mocked resources are not created using the standard Docker client service
API but instead using AddContainer, AddNetwork, and AddVolume. MockingMoby
additionally keeps a log of the service API calls made, so that tests can
check which engine operations were (not) carried out using Calls.
*/
package mockingmoby
