package eventbus

const (
	TopicCombatEvents    = "combat_events"
	TopicAnalysisReports = "analysis_reports"
	TopicSystemEvents    = "system_events"
)

const (
	TypeElimination     = "combat.elimination"
	TypeHotspotsRanked  = "analysis.hotspots_ranked"
	TypeCampingDetected = "analysis.camping_detected"
	TypeMonitorStarted  = "system.monitor_started"
	TypeMonitorStopped  = "system.monitor_stopped"
	TypeAnalysis        = "analysis."
	TypeCombat          = "combat."
)
