// Package host wraps everything infersetup touches on the machine it
// provisions: the process environment and shell profile, OS identity,
// external commands, downloads, the Docker daemon and systemd.
//
// Each concern is an interface so the pipeline can be driven against the
// in-memory fakes in package hosttest.
package host
