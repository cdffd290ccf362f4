// Package notice shows a blocking, must-dismiss message on the device
// screen. The manager uses it when bootstrap fails and there is no UI
// process to report the failure.
package notice
