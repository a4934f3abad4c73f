/*
Package matcher provides Gomega matchers for reaper cleanup results and
reports, as well as for the resources they are about.
*/
package matcher
