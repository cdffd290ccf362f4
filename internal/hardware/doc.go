// Package hardware holds the device facts and actions the manager needs:
// the pre-tick GPS probe and the uninstall/reboot/shutdown commands run after
// the manager drains.
package hardware
