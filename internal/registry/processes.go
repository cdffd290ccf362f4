package registry

import "time"

// Names the bootstrap ignore rules refer to.
const (
	NameAthenad  = "manage_athenad"
	NameUploader = "uploader"
	NamePandad   = "pandad"
	NameUI       = "ui"
)

// uiWatchdog is how long the UI may stall before the supervisor kills it.
const uiWatchdog = 30 * time.Second

// Platform holds the hardware facts that decide which processes exist.
type Platform struct {
	PC     bool
	TICI   bool
	Webcam bool
}

// DefaultProcesses returns the stock process table for a platform, in
// publication order.
func DefaultProcesses(p Platform) []Descriptor {
	var uiOpts []Option
	if !p.PC {
		uiOpts = append(uiOpts, WithWatchdog(uiWatchdog))
	}
	driverMonitoring := !p.PC || p.Webcam

	return []Descriptor{
		Daemon(NameAthenad, "selfdrive.athena.manage_athenad", "AthenadPid"),

		Native("camerad", "system/camerad", []string{"./camerad"}, DriverView),
		Native("logcatd", "system/logcatd", []string{"./logcatd"}, AllowLogging),
		Native("proclogd", "system/proclogd", []string{"./proclogd"}, AllowLogging),
		Interpreted("logmessaged", "system.logmessaged", AllowLogging),
		Interpreted("micd", "system.micd", IsCar),
		Interpreted("timed", "system.timed", AlwaysRun, WithEnabled(!p.PC)),

		Interpreted("dmonitoringmodeld", "selfdrive.modeld.dmonitoringmodeld", DriverView, WithEnabled(driverMonitoring)),
		Native("encoderd", "system/loggerd", []string{"./encoderd"}, AllowLogging),
		Native("stream_encoderd", "system/loggerd", []string{"./encoderd", "--stream"}, NotCar),
		Native("modeld", "selfdrive/modeld", []string{"./modeld"}, OnlyOnroad),
		Native("mapsd", "selfdrive/navd", []string{"./mapsd"}, OnlyOnroad),
		Interpreted("navmodeld", "selfdrive.modeld.navmodeld", OnlyOnroad),
		Native("sensord", "system/sensord", []string{"./sensord"}, OnlyOnroad, WithEnabled(!p.PC)),
		Native(NameUI, "selfdrive/ui", []string{"./ui"}, AlwaysRun, uiOpts...),
		Interpreted("soundd", "selfdrive.ui.soundd", OnlyOnroad),
		Native("locationd", "selfdrive/locationd", []string{"./locationd"}, OnlyOnroad),
		Native("boardd", "selfdrive/boardd", []string{"./boardd"}, AlwaysRun, WithEnabled(false)),
		Interpreted("calibrationd", "selfdrive.locationd.calibrationd", OnlyOnroad),
		Interpreted("torqued", "selfdrive.locationd.torqued", OnlyOnroad),
		Interpreted("controlsd", "selfdrive.controls.controlsd", OnlyOnroad),
		Interpreted("deleter", "system.loggerd.deleter", AlwaysRun),
		Interpreted("dmonitoringd", "selfdrive.monitoring.dmonitoringd", DriverView, WithEnabled(driverMonitoring)),
		Interpreted("qcomgpsd", "system.qcomgpsd.qcomgpsd", QcomGPS, WithEnabled(p.TICI)),
		Interpreted("navd", "selfdrive.navd.navd", OnlyOnroad),
		Interpreted(NamePandad, "selfdrive.boardd.pandad", AlwaysRun),
		Interpreted("paramsd", "selfdrive.locationd.paramsd", OnlyOnroad),
		Native("ubloxd", "system/ubloxd", []string{"./ubloxd"}, Ublox, WithEnabled(p.TICI)),
		Interpreted("pigeond", "system.ubloxd.pigeond", Ublox, WithEnabled(p.TICI)),
		Interpreted("plannerd", "selfdrive.controls.plannerd", OnlyOnroad),
		Interpreted("radard", "selfdrive.controls.radard", OnlyOnroad),
		Interpreted("thermald", "selfdrive.thermald.thermald", AlwaysRun),
		Interpreted("tombstoned", "selfdrive.tombstoned", AlwaysRun, WithEnabled(!p.PC)),
		Interpreted("updated", "selfdrive.updated.updated", AlwaysRun, WithEnabled(!p.PC)),
		Interpreted(NameUploader, "system.loggerd.uploader", AllowUploads),
		Interpreted("statsd", "selfdrive.statsd", AllowLogging),

		// debug
		Native("bridge", "cereal/messaging", []string{"./bridge"}, NotCar),
		Interpreted("webrtcd", "system.webrtc.webrtcd", NotCar),
		Interpreted("webjoystick", "tools.bodyteleop.web", NotCar),

		Interpreted("road_speed_limiter", "selfdrive.road_speed_limiter", AlwaysRun),
		Interpreted("fleet_manager", "selfdrive.frogpilot.fleetmanager.fleet_manager", AlwaysRun),
		Interpreted("frogpilot_process", "selfdrive.frogpilot.frogpilot_process", AlwaysRun),
		Interpreted("mapd", "selfdrive.frogpilot.navigation.mapd", AlwaysRun),
	}
}

// Default builds the registry for a platform.
func Default(p Platform) (*Registry, error) {
	return New(DefaultProcesses(p)...)
}
