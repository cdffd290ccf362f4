// Package identity resolves the device identity and records build metadata.
//
// Registration failures caused by the network never stop the manager: the
// device continues as UnregisteredDongleID and cloud-facing processes are
// kept off for the run. A missing serial or key pair is fatal.
package identity
